package resilience

import (
	"context"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/LavishGent/holdfast/internal/config"
)

// RetryPolicy retries transient failures with exponential backoff.
type RetryPolicy struct {
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	multiplier     float64
	jitter         bool
	retryable      func(error) bool

	totalRetries atomic.Int64
	totalSuccess atomic.Int64
	totalFailure atomic.Int64
}

// NewRetryPolicy creates a retry policy. A disabled config yields a policy
// that makes exactly one attempt.
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	rp := &RetryPolicy{
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		multiplier:     cfg.Multiplier,
		jitter:         cfg.Jitter,
		retryable:      IsRetryable,
	}

	if !cfg.Enabled || rp.maxAttempts <= 0 {
		rp.maxAttempts = 1
	}
	if rp.initialBackoff <= 0 {
		rp.initialBackoff = 100 * time.Millisecond
	}
	if rp.maxBackoff <= 0 {
		rp.maxBackoff = 2 * time.Second
	}
	if rp.multiplier <= 0 {
		rp.multiplier = 2.0
	}

	return rp
}

// MaxAttempts includes the first attempt.
func (rp *RetryPolicy) MaxAttempts() int {
	return rp.maxAttempts
}

// Execute runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= rp.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx)
		if err == nil {
			rp.totalSuccess.Add(1)
			return nil
		}

		lastErr = err

		if !rp.retryable(err) {
			rp.totalFailure.Add(1)
			return err
		}

		if attempt == rp.maxAttempts {
			break
		}

		rp.totalRetries.Add(1)

		timer := time.NewTimer(rp.calculateBackoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	rp.totalFailure.Add(1)
	return lastErr
}

func (rp *RetryPolicy) calculateBackoff(attempt int) time.Duration {
	backoff := float64(rp.initialBackoff) * math.Pow(rp.multiplier, float64(attempt-1))

	if backoff > float64(rp.maxBackoff) {
		backoff = float64(rp.maxBackoff)
	}

	// ±25%
	if rp.jitter {
		jitterRange := backoff * 0.25
		backoff += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	return time.Duration(backoff)
}

// Stats returns retry statistics.
func (rp *RetryPolicy) Stats() (retries, success, failure int64) {
	return rp.totalRetries.Load(), rp.totalSuccess.Load(), rp.totalFailure.Load()
}
