package cache

import (
	"sync"
	"time"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// TTL is a process-wide cache with a fixed per-entry lifetime. The zero
// value is not usable; construct with New.
type TTL struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// New creates a TTL cache. now may be nil, in which case time.Now is used.
func New(ttl time.Duration, now func() time.Time) *TTL {
	if now == nil {
		now = time.Now
	}
	return &TTL{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Get returns the cached value for key when present and not expired.
// Expired entries are removed on access.
func (c *TTL) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have
		// refreshed the entry since the read.
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Set stores value under key with a fresh TTL.
func (c *TTL) Set(key string, value any) {
	expires := c.now().Add(c.ttl)
	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: expires}
	c.mu.Unlock()
}

// Evict removes key from the cache.
func (c *TTL) Evict(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear drops every entry.
func (c *TTL) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}

// Len reports the number of entries, including any not yet reaped expired
// ones.
func (c *TTL) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
