package runner

import (
	"context"
	"time"

	"curator/internal/services"
)

// RetryPolicy governs retries around a single adapter call. This is distinct
// from the queue-level retry budget: the policy absorbs short provider
// hiccups within one attempt, the queue budget bounds attempts across runs.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// Do runs op, retrying with an error-class-specific backoff: rate limits back
// off linearly, transient network failures exponentially, anything else
// retryable with a short linear wait. Terminal errors return immediately.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	p = p.normalized()
	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !services.IsRetryable(lastErr) || attempt == p.MaxAttempts {
			break
		}
		select {
		case <-time.After(p.delayFor(lastErr, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (p RetryPolicy) delayFor(err error, attempt int) time.Duration {
	switch {
	case services.IsRateLimited(err):
		return p.BaseDelay * time.Duration(attempt)
	case services.IsTransient(err):
		return p.BaseDelay * time.Duration(1<<attempt)
	default:
		return p.BaseDelay / 2 * time.Duration(attempt)
	}
}
