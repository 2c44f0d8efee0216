package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one inbox file waiting for text extraction.
type Job struct {
	Path        string
	Force       bool // re-extract even if a text file already exists
	SubmittedAt time.Time
	TraceID     string
}

// NewJob stamps a job for path with a fresh trace id.
func NewJob(path string, force bool) Job {
	return Job{Path: path, Force: force, SubmittedAt: time.Now(), TraceID: uuid.NewString()}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
