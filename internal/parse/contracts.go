package parse

import (
	"context"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
)

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Path       string
	Text       string
	Pages      int
	SourceType constants.Format
	Method     constants.Method
	Duration   time.Duration
}
