package tenant

import (
	"sync"
	"time"
)

// timedEntry wraps a value with its expiry time for TTL tracking.
type timedEntry[T any] struct {
	value     T
	expiresAt time.Time
}

// cache is a small TTL cache for resolved bindings. Expired entries are
// dropped lazily on read; the working set is bounded by the number of
// namespaces in the cluster so no background sweeper is needed.
type cache[T any] struct {
	mu      sync.RWMutex
	entries map[string]timedEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

func newCache[T any](ttl time.Duration) *cache[T] {
	return &cache[T]{
		entries: make(map[string]timedEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *cache[T]) get(key string) (T, bool) {
	var zero T
	if c.ttl <= 0 {
		return zero, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}

	return entry.value, true
}

func (c *cache[T]) put(key string, value T) {
	if c.ttl <= 0 {
		return
	}

	c.mu.Lock()
	c.entries[key] = timedEntry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *cache[T]) invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
