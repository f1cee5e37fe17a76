package resilience

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls bounded exponential backoff for transient errors.
type RetryPolicy struct {
	MaxRetries    uint64        // additional attempts after the first (default 3)
	BaseDelay     time.Duration // delay before the first retry (default 1s)
	BackoffFactor float64       // multiplier between attempts (default 2.0)
}

// DefaultRetryPolicy returns the standard policy: 3 retries at 1s, 2s, 4s.
// No jitter: single-process deployment, and deterministic sleeps keep the
// retry schedule testable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 2.0,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = time.Second
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = 2.0
	}
	return p
}

// Retry runs op, retrying transient failures per the policy. Non-transient
// errors propagate immediately. The context deadline is checked before each
// sleep and each attempt.
func Retry(ctx context.Context, policy RetryPolicy, name string, op func() error) error {
	policy = policy.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.BaseDelay
	bo.Multiplier = policy.BackoffFactor
	bo.RandomizationFactor = 0
	bo.MaxInterval = policy.BaseDelay * 1 << 20 // never clamp within budget
	bo.MaxElapsedTime = 0

	attempt := 0
	wrapped := func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		slog.Debug("retry: transient failure", "op", name, "attempt", attempt, "error", err)
		return err
	}

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, policy.MaxRetries), ctx))
}
