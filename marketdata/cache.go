package marketdata

import (
	"sync"
	"time"
)

// entry is one memoized external value.
type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// expired reports whether the entry is older than ttl at the given instant.
func (e entry[V]) expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.fetchedAt) >= ttl
}

// CacheStats counts how a cache resolved its lookups.
type CacheStats struct {
	Hits   int64 // served fresh from memory or the durable table
	Misses int64 // resolved through a provider fetch
	Stale  int64 // served an expired value after a failed fetch
}

// ttlCache memoizes external values for a fixed time window. Reads and writes
// may be concurrent; a refresh is last-writer-wins, which is acceptable
// because the cached values are idempotent external facts.
type ttlCache[V any] struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry[V]
	stats   CacheStats
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	return &ttlCache[V]{ttl: ttl, entries: make(map[string]entry[V])}
}

// lookup returns the entry under key and whether it is still fresh at now.
// The second return is false when no entry exists at all.
func (c *ttlCache[V]) lookup(key string, now time.Time) (e entry[V], exists, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, exists = c.entries[key]
	fresh = exists && !e.expired(now, c.ttl)
	return e, exists, fresh
}

// store records a freshly fetched value.
func (c *ttlCache[V]) store(key string, value V, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, fetchedAt: fetchedAt}
}

func (c *ttlCache[V]) hit() {
	c.mu.Lock()
	c.stats.Hits++
	c.mu.Unlock()
}

func (c *ttlCache[V]) miss() {
	c.mu.Lock()
	c.stats.Misses++
	c.mu.Unlock()
}

func (c *ttlCache[V]) servedStale() {
	c.mu.Lock()
	c.stats.Stale++
	c.mu.Unlock()
}

// Stats returns a copy of the counters.
func (c *ttlCache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}
