// Package httputil provides retry primitives for HTTP API clients.
//
// Transient failures (network errors, 429 rate limits) are wrapped with
// [RetryableError] so that [Retry] knows to attempt the operation again
// with exponential backoff. Any other error returns immediately.
package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, rate-limit responses) with
// this type so that [Retry] knows to attempt the operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is wrapped with [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Retry executes fn up to attempts times with exponential backoff.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. The delay doubles after each failed attempt and
// no sleep occurs after the final one. Returns the last error if all
// attempts fail, or ctx.Err() if cancelled while waiting.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	return RetryNotify(ctx, attempts, delay, fn, nil)
}

// RetryNotify is [Retry] with a callback invoked before each backoff
// sleep. The callback receives the 1-indexed attempt that just failed,
// the upcoming delay, and the failure; it is not invoked after the final
// attempt. Use it to log retries or record metrics.
func RetryNotify(ctx context.Context, attempts int, delay time.Duration, fn func() error, notify func(attempt int, delay time.Duration, err error)) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !IsRetryable(err) {
			return err
		}

		if i < attempts-1 {
			if notify != nil {
				notify(i+1, delay, lastErr)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}
