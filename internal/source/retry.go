package source

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls how often a single source is retried after a
// retryable failure.
type RetryPolicy struct {
	MaxRetries int           // additional attempts after the first
	BaseDelay  time.Duration // wait before the first retry
	MaxDelay   time.Duration // cap on the exponential part; 0 means none
	Factor     float64       // growth per retry
	MaxJitter  time.Duration // uniform jitter added to every wait
}

// DefaultRetryPolicy returns 2 retries waiting 1s then 2s, plus up to 1s of
// jitter each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Factor:     2,
		MaxJitter:  time.Second,
	}
}

// Backoff returns the deterministic wait before retry n (n >= 1):
// BaseDelay * Factor^(n-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := time.Duration(float64(p.BaseDelay) * math.Pow(factor, float64(n-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
