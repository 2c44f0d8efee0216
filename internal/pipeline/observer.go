package pipeline

import (
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// Observer receives pipeline events. Implementations must be safe for
// concurrent use; FileExtracted is called from extraction goroutines.
type Observer interface {
	FileExtracted(format constants.Format, method constants.Method, d time.Duration, err error)
	RunFinished(scenario constants.Scenario, status constants.RunStatus, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) FileExtracted(constants.Format, constants.Method, time.Duration, error) {}
func (nopObserver) RunFinished(constants.Scenario, constants.RunStatus, time.Duration)     {}
