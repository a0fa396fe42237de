package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go"
)

// ExponentialBackoff returns base * 2^attempt, capped at max when max > 0.
func ExponentialBackoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if max > 0 && (attempt >= 62 || base > max>>attempt) {
		return max
	}
	return base * (1 << attempt)
}

// Do runs fn up to attempts times, waiting ExponentialBackoff between tries.
// It returns the last error, or ctx.Err() if the context ends while waiting.
func Do(ctx context.Context, attempts uint, base, max time.Duration, fn func() error) error {
	if attempts == 0 {
		attempts = 1
	}
	return retrygo.Do(
		fn,
		retrygo.Context(ctx),
		retrygo.Attempts(attempts),
		retrygo.LastErrorOnly(true),
		retrygo.DelayType(func(n uint, _ error, _ *retrygo.Config) time.Duration {
			return ExponentialBackoff(int(n), base, max)
		}),
	)
}
