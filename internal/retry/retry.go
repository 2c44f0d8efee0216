// Package retry runs operations with bounded exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"
)

// Policy configures Do. Zero fields take the defaults of Default().
type Policy struct {
	Name        string
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	// Jitter is the +/- fraction applied to each delay (0.25 = 25%).
	Jitter float64
	// Retryable decides whether an error is worth another attempt.
	// Nil retries every error.
	Retryable func(error) bool
	Logger    *slog.Logger
}

// Default mirrors the general-purpose backoff: 3 attempts, 1s doubling to 60s, 25% jitter.
func Default() Policy {
	return Policy{
		Name:        "operation",
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    60 * time.Second,
		Factor:      2,
		Jitter:      0.25,
	}
}

// OCR is the per-image recognition policy: 2 attempts, 1s base delay.
func OCR() Policy {
	p := Default()
	p.Name = "ocr.recognize"
	p.MaxAttempts = 2
	return p
}

// LLM is used around chat completion requests.
func LLM() Policy {
	p := Default()
	p.Name = "llm.query"
	p.MaxAttempts = 2
	p.BaseDelay = 2 * time.Second
	p.MaxDelay = 10 * time.Second
	return p
}

// FileOperation retries filesystem errors only.
func FileOperation() Policy {
	p := Default()
	p.Name = "file"
	p.BaseDelay = 500 * time.Millisecond
	p.Retryable = func(err error) bool {
		var pe *fs.PathError
		return errors.As(err, &pe)
	}
	return p
}

// Permanent marks an error that must not be retried regardless of policy.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Do calls op until it succeeds, the policy gives up or ctx is done.
// The last error is returned unchanged (Permanent wrappers are removed).
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return zero, perm.err
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			p.Logger.Error("retry exhausted", "op", p.Name, "attempts", p.MaxAttempts, "error", err)
			break
		}

		delay := p.Delay(attempt)
		p.Logger.Warn("attempt failed, retrying",
			"op", p.Name,
			"attempt", attempt,
			"max_attempts", p.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return zero, errors.Join(lastErr, err)
		}
	}
	return zero, lastErr
}

// Delay returns the wait after the given 1-based attempt, jitter included.
func (p Policy) Delay(attempt int) time.Duration {
	p = p.withDefaults()
	d := float64(p.BaseDelay) * math.Pow(p.Factor, float64(attempt-1))
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*rand.Float64() - 1)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}

func (p Policy) withDefaults() Policy {
	def := Default()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Factor <= 0 {
		p.Factor = def.Factor
	}
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return p
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
