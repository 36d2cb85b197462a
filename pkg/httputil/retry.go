// Package httputil provides small HTTP helpers shared by the RPC client
// and the relay handler: retry classification and a permissive CORS header
// set for relayed responses.
package httputil

import (
	"context"
	"errors"
	"time"
)

// RetryableError wraps an error to indicate it should trigger a retry.
// Wrap transient failures (network timeouts, connection errors, 5xx
// responses) with this type so that [Retry] knows to attempt the
// operation again.
type RetryableError struct{ Err error }

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retry executes fn up to attempts times, waiting delay between tries.
// It only retries errors wrapped with [RetryableError]; other errors are
// returned immediately. A zero delay retries without waiting.
// Returns the last error if all attempts fail, or ctx.Err() if cancelled.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var lastErr error

	for i := range attempts {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}

		if i < attempts-1 {
			if delay == 0 {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// RetryOnce executes fn and, on a retryable failure, tries exactly one
// more time with no backoff. Misbehaving peers must not hold a crawl
// slot for long, so there is no waiting between the two attempts.
func RetryOnce(ctx context.Context, fn func() error) error {
	return Retry(ctx, 2, 0, fn)
}

func isRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}
