package cache

import (
	"container/list"
	"sync"
	"time"
)

// lruEntry is a single fallback-tier record. Expiry is checked lazily at
// read time against the wall clock.
type lruEntry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// LRU is a bounded in-process cache with TTL-at-read semantics. It serves as
// the fallback tier when the primary is unavailable, and as the sole tier for
// the embedding cache.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	items    map[string]*list.Element
	now      func() time.Time // overridable in tests
}

// NewLRU creates an LRU cache holding at most capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 1000
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached value and true on a live hit. Expired entries are
// removed and reported as a miss.
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*lruEntry)
	if !entry.expiresAt.IsZero() && c.now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.value, true
}

// Set stores value under key. ttl <= 0 means no expiry. The least recently
// used entry is evicted when the cache is full.
func (c *LRU) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = c.now().Add(ttl)
	}

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = expires
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruEntry{key: key, value: value, expiresAt: expires})
	c.items[key] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}

// Invalidate removes key if present.
func (c *LRU) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.Remove(el)
		delete(c.items, key)
	}
}

// Len returns the current number of entries, including not-yet-collected
// expired ones.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
