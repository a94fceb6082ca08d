package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"time"
)

// IsRetryable checks if an error is worth retrying. Store errors opt in by
// implementing Retryable; transport failures are always retried.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
