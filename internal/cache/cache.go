package cache

import (
	"sync"
	"time"
)

// Cache holds a single value until its TTL elapses. A zero TTL disables
// caching: Set is recorded but Get always misses.
type Cache[T any] struct {
	mu      sync.RWMutex
	value   *T
	fetched time.Time
	exp     time.Time
	ttl     time.Duration
	version uint64
}

func NewCache[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl}
}

func (c *Cache[T]) Get() (*T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.value == nil || !time.Now().Before(c.exp) {
		return nil, false
	}
	return c.value, true
}

func (c *Cache[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(v)
}

// Version changes on every Invalidate. Capture it before reading the
// backing store and hand it to SetIfVersion.
func (c *Cache[T]) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// SetIfVersion stores v unless the cache was invalidated since version
// was read. It reports whether v was stored.
func (c *Cache[T]) SetIfVersion(v T, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.version != version {
		return false
	}
	c.setLocked(v)
	return true
}

func (c *Cache[T]) setLocked(v T) {
	c.value = &v
	c.fetched = time.Now()
	c.exp = c.fetched.Add(c.ttl)
}

// FetchedAt reports when the current value was stored, or the zero time.
func (c *Cache[T]) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

func (c *Cache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
	c.fetched = time.Time{}
	c.version++
}
