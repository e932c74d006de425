package store

import (
	"context"
	"fmt"
	"math"
	"time"
)

// RetryPolicy defines how often opening a backend is attempted.
type RetryPolicy struct {
	MaxRetries   int           // Maximum number of retry attempts (0 = no retries)
	InitialDelay time.Duration // Delay before the first retry
	MaxDelay     time.Duration // Upper bound for a single delay
	Multiplier   float64       // Exponential backoff multiplier
}

// DefaultRetryPolicy retries twice with a short backoff, so a backend that
// is still starting up gets a chance without stalling session start.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// retryWithPolicy runs fn until it succeeds, the policy is exhausted or ctx
// is done. onRetry is called before every wait.
func retryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn func(ctx context.Context) (T, error),
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt >= policy.MaxRetries {
			return zero, err
		}

		delay := policy.delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
