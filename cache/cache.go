// Package cache provides the two-tier cache shared by the embedding,
// glossary, and query-answer caches: a distributed Redis primary with an
// in-process LRU fallback. The primary is optional; with no Redis configured
// the cache degrades to the fallback tier alone.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

// Cache is the read/write interface all consumers share.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// Options configures a two-tier cache.
type Options struct {
	// Redis is the primary tier client; nil disables the primary.
	Redis redis.UniversalClient
	// FallbackCapacity bounds the in-process LRU tier (default 1000).
	FallbackCapacity int
	// OpTimeout bounds each primary operation (default 1s).
	OpTimeout time.Duration
	// UnavailableFor is how long the primary is skipped after consecutive
	// failures trip the breaker (default 60s).
	UnavailableFor time.Duration
}

// TwoTier implements Cache with write-through to both tiers. The primary is
// guarded by a circuit breaker: after 3 consecutive failures it is treated
// as unavailable for UnavailableFor, then re-probed.
type TwoTier struct {
	rdb       redis.UniversalClient
	fallback  *LRU
	breaker   *gobreaker.CircuitBreaker
	opTimeout time.Duration
}

// New creates a two-tier cache from opts.
func New(opts Options) *TwoTier {
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = time.Second
	}
	if opts.UnavailableFor <= 0 {
		opts.UnavailableFor = 60 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "cache-primary",
		MaxRequests: 1,
		Timeout:     opts.UnavailableFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				slog.Warn("cache: primary unavailable, serving from fallback", "for", opts.UnavailableFor)
			} else if to == gobreaker.StateClosed {
				slog.Info("cache: primary recovered")
			}
		},
	})

	return &TwoTier{
		rdb:       opts.Redis,
		fallback:  NewLRU(opts.FallbackCapacity),
		breaker:   breaker,
		opTimeout: opts.OpTimeout,
	}
}

// Fallback exposes the in-process tier for consumers that are purely local
// (the embedding cache).
func (c *TwoTier) Fallback() *LRU { return c.fallback }

// PrimaryAvailable reports whether the primary tier is configured and the
// breaker currently admits requests.
func (c *TwoTier) PrimaryAvailable() bool {
	return c.rdb != nil && c.breaker.State() != gobreaker.StateOpen
}

// primaryResult distinguishes a miss from a hit inside the breaker, so that
// redis.Nil is not counted as a primary failure.
type primaryResult struct {
	value []byte
	hit   bool
}

// Get tries the primary, then the fallback, returning the first hit.
func (c *TwoTier) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.rdb != nil {
		res, err := c.breaker.Execute(func() (any, error) {
			opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
			defer cancel()
			b, err := c.rdb.Get(opCtx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				return primaryResult{}, nil
			}
			if err != nil {
				return nil, err
			}
			return primaryResult{value: b, hit: true}, nil
		})
		switch {
		case err == nil:
			if r := res.(primaryResult); r.hit {
				slog.Debug("cache: primary hit", "key", key)
				return r.value, true
			}
			// primary miss, fall through to the fallback tier
		case errors.Is(err, gobreaker.ErrOpenState):
			// primary in its unavailable window
		default:
			slog.Debug("cache: primary error", "key", key, "error", err)
		}
	}

	if v, ok := c.fallback.Get(key); ok {
		slog.Debug("cache: fallback hit", "key", key)
		return v, true
	}
	slog.Debug("cache: miss", "key", key)
	return nil, false
}

// Set writes through to both tiers. TTL is enforced natively by the primary
// and by wall-clock comparison at read time in the fallback.
func (c *TwoTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	c.fallback.Set(key, value, ttl)

	if c.rdb == nil {
		return
	}
	_, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		return nil, c.rdb.Set(opCtx, key, value, ttl).Err()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
		slog.Debug("cache: primary set failed", "key", key, "error", err)
	}
}

// Invalidate removes key from both tiers.
func (c *TwoTier) Invalidate(ctx context.Context, key string) {
	c.fallback.Invalidate(key)

	if c.rdb == nil {
		return
	}
	_, err := c.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		defer cancel()
		return nil, c.rdb.Del(opCtx, key).Err()
	})
	if err != nil && !errors.Is(err, gobreaker.ErrOpenState) {
		slog.Debug("cache: primary invalidate failed", "key", key, "error", err)
	}
}
