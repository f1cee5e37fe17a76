package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*TwoTier, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(Options{Redis: rdb, FallbackCapacity: 10}), mr
}

func TestSetGetRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if string(got) != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestInvalidateThenGetMisses(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	c.Invalidate(ctx, "k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss immediately after Invalidate")
	}
}

func TestGetFallsBackWhenPrimaryDown(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.Close() // primary gone; fallback still holds the write-through copy

	got, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("expected fallback hit with primary down")
	}
	if string(got) != "v" {
		t.Errorf("got %q, want %q", got, "v")
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	mr.Close()

	// Three consecutive primary failures trip the breaker.
	for i := 0; i < 3; i++ {
		c.Get(ctx, "missing")
	}
	if c.PrimaryAvailable() {
		t.Error("expected primary to be marked unavailable after 3 failures")
	}

	// Cache still serves from fallback.
	c.Set(ctx, "k", []byte("v"), time.Minute)
	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("fallback should serve while primary is unavailable")
	}
}

func TestPrimaryMissDoesNotTripBreaker(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		c.Get(ctx, "never-set")
	}
	if !c.PrimaryAvailable() {
		t.Error("misses must not count as primary failures")
	}
}

func TestNoPrimaryConfigured(t *testing.T) {
	c := New(Options{})
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	if got, ok := c.Get(ctx, "k"); !ok || string(got) != "v" {
		t.Errorf("fallback-only cache should round-trip, got %q ok=%v", got, ok)
	}
}

func TestLRUEviction(t *testing.T) {
	l := NewLRU(2)
	l.Set("a", []byte("1"), 0)
	l.Set("b", []byte("2"), 0)
	l.Set("c", []byte("3"), 0) // evicts a

	if _, ok := l.Get("a"); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := l.Get("b"); !ok {
		t.Error("b should survive")
	}
	if _, ok := l.Get("c"); !ok {
		t.Error("c should survive")
	}
}

func TestLRUGetRefreshesRecency(t *testing.T) {
	l := NewLRU(2)
	l.Set("a", []byte("1"), 0)
	l.Set("b", []byte("2"), 0)
	l.Get("a")                 // a becomes most recent
	l.Set("c", []byte("3"), 0) // evicts b

	if _, ok := l.Get("a"); !ok {
		t.Error("recently used entry should survive eviction")
	}
	if _, ok := l.Get("b"); ok {
		t.Error("least recently used entry should be evicted")
	}
}

func TestLRUTTLExpiry(t *testing.T) {
	l := NewLRU(10)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Set("k", []byte("v"), time.Minute)
	if _, ok := l.Get("k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	l.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := l.Get("k"); ok {
		t.Error("expected miss after TTL elapsed")
	}
	if l.Len() != 0 {
		t.Error("expired entry should be removed on read")
	}
}

func TestTTLExpiryInPrimary(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	mr.FastForward(2 * time.Minute)

	// Fallback TTL uses the real clock, so only the primary has expired;
	// force the check against the primary by clearing the fallback.
	c.fallback.Invalidate("k")
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expected miss after primary TTL elapsed")
	}
}
