// Package retry provides the exponential-backoff helper used by the
// network-facing mixer paths.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Backoff describes a bounded exponential retry schedule. The delay before
// attempt n (zero-based) is Base << n.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// MaxAttempts is the total number of attempts, the initial one
	// included. Values below 1 are treated as 1.
	MaxAttempts int
}

// permanentError stops the retry loop immediately.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so Do gives up without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Delay returns the wait before the given zero-based retry.
func (b Backoff) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	return b.Base << uint(retry)
}

// Do runs fn until it succeeds, the attempts are exhausted, or the context
// is cancelled. Each failure is logged and the next attempt waits the
// doubling backoff delay.
func Do(ctx context.Context, log *slog.Logger, name string, b Backoff, fn func(ctx context.Context) error) error {
	if log == nil {
		log = slog.Default()
	}

	attempts := b.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			delay := b.Delay(attempt - 1)
			log.Info("retrying operation",
				slog.String("operation", name),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		log.Warn("operation failed",
			slog.String("operation", name),
			slog.Int("attempt", attempt+1),
			slog.String("error", lastErr.Error()),
		)

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}
