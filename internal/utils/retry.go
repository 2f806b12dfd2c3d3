package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// retryInitialDelay is the first wait between attempts; later waits grow
// exponentially with jitter.
const retryInitialDelay = 200 * time.Millisecond

// Retry runs op until it succeeds, returns an error wrapped with
// backoff.Permanent, the context ends or maxRetries additional attempts
// have failed.  maxRetries of zero runs op exactly once.
func Retry[T any](ctx context.Context, maxRetries uint, op func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialDelay
	b.MaxInterval = 2 * time.Second
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(maxRetries+1),
	)
}

// Permanent marks err so Retry stops immediately and returns it.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
