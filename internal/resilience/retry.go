// Package resilience provides fault tolerance patterns
package resilience

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/scribeflow/platform/internal/errors"
)

// Retry configuration constants
const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = 500 * time.Millisecond

	// Bounds for the configurable attempt count
	MinAttempts = 1
	MaxAttempts = 5
)

// Policy holds retry settings. Backoff grows linearly: after a failed
// attempt n (1-indexed) the wait is BackoffBase * n, applied only before
// attempts 2..MaxAttempts.
type Policy struct {
	MaxAttempts int
	BackoffBase time.Duration
}

// DefaultPolicy returns standard retry settings.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, BackoffBase: DefaultBackoffBase}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts < MinAttempts {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.MaxAttempts > MaxAttempts {
		p.MaxAttempts = MaxAttempts
	}
	if p.BackoffBase < 0 {
		p.BackoffBase = DefaultBackoffBase
	}
	return p
}

// Do executes fn sequentially up to p.MaxAttempts times. The final failure
// is re-raised to the caller tagged with the attempt count; synthesizing a
// fallback value is the caller's job, not this package's.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	_, err := DoValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoValue is Do for tasks that produce a value.
func DoValue[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	var zero T
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if attempt == p.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * p.BackoffBase
		slog.Debug("retrying after error", "attempt", attempt, "max", p.MaxAttempts, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, tagAttempts(lastErr, p.MaxAttempts)
}

// tagAttempts annotates the terminal error with how many attempts were made.
func tagAttempts(err error, attempts int) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.WithMetadata("attempts", strconv.Itoa(attempts))
	}
	return errors.Wrapf(err, errors.CodeOf(err), "failed after %d attempts", attempts)
}
