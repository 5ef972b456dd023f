// internal/retry/retry.go
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy controls how an operation is retried.
type Policy struct {
	// MaxAttempts is the total number of invocations, including the first.
	MaxAttempts int
	// BaseDelay is the delay before the second attempt; it doubles per
	// attempt up to MaxDelay, with ±25% uniform jitter.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// IsRetryable classifies errors. A false return stops retrying
	// immediately and the error is returned as-is. Nil means retry all.
	IsRetryable func(error) bool
	// OnRetry, if set, fires before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Do invokes op up to p.MaxAttempts times. On exhaustion the last error is
// returned. This is the sole retry point; callers must not re-wrap it.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}

	b := p.newBackOff()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if p.IsRetryable != nil && !p.IsRetryable(err) {
			return zero, err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := b.NextBackOff()
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
