package tools

import (
	"sync"
	"time"
)

// defaultCacheCapacity bounds the number of cached tool results.
const defaultCacheCapacity = 256

// cacheEntry holds a cached result with its insertion time for TTL expiry
// and its last access time for LRU eviction.
type cacheEntry struct {
	result     *Result
	insertedAt time.Time
	lastAccess time.Time
}

// Cache is a process-wide TTL cache for tool results with a fixed capacity.
// Expired entries are cleaned up lazily on Get; when the capacity is
// exceeded on Set, the least recently used entry is evicted.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	ttl      time.Duration
	capacity int

	now func() time.Time // injectable clock for tests
}

// NewCache creates a cache with the given TTL and the default capacity.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries:  make(map[string]*cacheEntry),
		ttl:      ttl,
		capacity: defaultCacheCapacity,
		now:      time.Now,
	}
}

// Get returns a cached result if present and not expired.
func (c *Cache) Get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	entry.lastAccess = c.now()
	return entry.result, true
}

// Set stores a result under the key with store-if-absent semantics: a
// concurrent writer that lost the race does not clobber the existing entry.
func (c *Cache) Set(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok && c.now().Sub(existing.insertedAt) <= c.ttl {
		return
	}
	if len(c.entries) >= c.capacity {
		c.evictLeastRecentLocked()
	}
	now := c.now()
	c.entries[key] = &cacheEntry{result: result, insertedAt: now, lastAccess: now}
}

// Len returns the current number of entries (expired included until touched).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLeastRecentLocked() {
	var lruKey string
	var lruAt time.Time
	for k, e := range c.entries {
		if lruKey == "" || e.lastAccess.Before(lruAt) {
			lruKey = k
			lruAt = e.lastAccess
		}
	}
	if lruKey != "" {
		delete(c.entries, lruKey)
	}
}
