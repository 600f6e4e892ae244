// Package poll implements bounded waiting for asynchronous jobs.
package poll

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrDeadlineExceeded is returned when a job does not settle within the
// configured deadline.
var ErrDeadlineExceeded = errors.New("pricelens: poll deadline exceeded")

// Config configures the poll loop.
type Config struct {
	Interval    time.Duration // Delay before the first status check
	MaxInterval time.Duration // Upper bound for the backed-off delay
	Multiplier  float64       // Backoff multiplier applied per attempt (e.g., 1.5)
	Deadline    time.Duration // Total wait budget (0 = no deadline)
	MaxAttempts int           // Maximum status checks (0 = unlimited)
}

// DefaultConfig returns sensible polling defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    500 * time.Millisecond,
		MaxInterval: 5 * time.Second,
		Multiplier:  1.5,
		Deadline:    2 * time.Minute,
	}
}

// DelayFor calculates the backed-off delay before a given attempt.
func (c Config) DelayFor(attempt int) time.Duration {
	if attempt <= 0 {
		return c.Interval
	}

	delay := float64(c.Interval) * math.Pow(c.Multiplier, float64(attempt))
	if c.MaxInterval > 0 && time.Duration(delay) > c.MaxInterval {
		return c.MaxInterval
	}
	return time.Duration(delay)
}

// CheckFunc inspects the job once. It returns the settled value when done,
// or done=false to keep waiting. Errors abort the wait immediately.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// Wait polls fn until it reports done, fails, or the budget runs out.
// Each attempt is preceded by a backed-off delay starting at Interval.
func Wait[T any](ctx context.Context, cfg Config, fn CheckFunc[T]) (T, error) {
	var zero T

	if cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, cfg.Deadline, ErrDeadlineExceeded)
		defer cancel()
	}

	for attempt := 0; cfg.MaxAttempts <= 0 || attempt < cfg.MaxAttempts; attempt++ {
		select {
		case <-time.After(cfg.DelayFor(attempt)):
		case <-ctx.Done():
			return zero, waitErr(ctx)
		}

		value, done, err := fn(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}
	}

	return zero, fmt.Errorf("pricelens: job not settled after %d status checks", cfg.MaxAttempts)
}

func waitErr(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrDeadlineExceeded) {
		return ErrDeadlineExceeded
	}
	return fmt.Errorf("pricelens: wait cancelled: %w", ctx.Err())
}
