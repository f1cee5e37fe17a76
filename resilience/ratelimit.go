package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded is returned when a caller waited the maximum allowed
// time for a token and none became available.
var ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

// HostLimiter maintains one token bucket per external host. Buckets have
// capacity 1 so bursts to a single host are never possible.
type HostLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	refill  rate.Limit
	maxWait time.Duration
}

// NewHostLimiter creates a per-host limiter. refillPerSec is the sustained
// request rate per host (default 1/s); maxWait bounds how long Wait blocks
// before failing with ErrRateLimitExceeded.
func NewHostLimiter(refillPerSec float64, maxWait time.Duration) *HostLimiter {
	if refillPerSec <= 0 {
		refillPerSec = 1
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &HostLimiter{
		buckets: make(map[string]*rate.Limiter),
		refill:  rate.Limit(refillPerSec),
		maxWait: maxWait,
	}
}

func (l *HostLimiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[host]
	if !ok {
		b = rate.NewLimiter(l.refill, 1)
		l.buckets[host] = b
	}
	return b
}

// Wait blocks until a token is available for host, the bounded wait elapses,
// or ctx is cancelled. Context cancellation propagates as-is; an exhausted
// wait returns ErrRateLimitExceeded.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	err := l.bucket(host).Wait(waitCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrRateLimitExceeded
}

// Allow reports whether a token is immediately available without consuming
// wait time. Used by health checks.
func (l *HostLimiter) Allow(host string) bool {
	return l.bucket(host).Allow()
}
