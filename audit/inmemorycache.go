package audit

import (
	"sync"
	"time"
)

// maxInvalidations bounds the invalidation log kept for unbounded caches
const maxInvalidations = 10000

type cacheEntry struct {
	records  []*DecisionRecord
	cachedAt time.Time
}

// InMemoryDecisionCache is a map-backed DecisionCache.
// Thread-safe for concurrent access.
//
// Generations come from one counter bumped by every Invalidate. A Set is
// accepted only if its hash was not invalidated after the generation was
// handed out, and only if the invalidation log has not been truncated since.
type InMemoryDecisionCache struct {
	entries     map[string]cacheEntry
	invalidated map[string]uint64
	seq         uint64
	floor       uint64
	config      CacheConfig
	now         func() time.Time
	mu          sync.RWMutex
}

// NewInMemoryDecisionCache creates a new in-memory decision cache
func NewInMemoryDecisionCache(config CacheConfig) *InMemoryDecisionCache {
	return &InMemoryDecisionCache{
		entries:     make(map[string]cacheEntry),
		invalidated: make(map[string]uint64),
		config:      config,
		now:         time.Now,
	}
}

// Get returns a copy of the cached records for hash
func (c *InMemoryDecisionCache) Get(hash string) ([]*DecisionRecord, uint64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[hash]
	if !ok || c.expired(entry) {
		return nil, c.seq, false
	}

	// Return copy to prevent external modifications
	return cloneAll(entry.records), c.seq, true
}

// Set stores a copy of records. When the cache is full, expired entries are
// dropped first, then the oldest entry.
func (c *InMemoryDecisionCache) Set(hash string, gen uint64, records []*DecisionRecord) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.floor || c.invalidated[hash] > gen {
		return false
	}

	if _, exists := c.entries[hash]; !exists && c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		c.evict()
	}

	c.entries[hash] = cacheEntry{
		records:  cloneAll(records),
		cachedAt: c.now(),
	}
	return true
}

// Invalidate drops the entry for hash
func (c *InMemoryDecisionCache) Invalidate(hash string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, hash)

	c.seq++
	c.invalidated[hash] = c.seq
	if len(c.invalidated) > c.invalidationLimit() {
		clear(c.invalidated)
		c.floor = c.seq
	}
}

func (c *InMemoryDecisionCache) invalidationLimit() int {
	if c.config.MaxEntries > 0 {
		return c.config.MaxEntries
	}
	return maxInvalidations
}

// Len counts entries that have not expired
func (c *InMemoryDecisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entry := range c.entries {
		if !c.expired(entry) {
			n++
		}
	}
	return n
}

func (c *InMemoryDecisionCache) expired(entry cacheEntry) bool {
	return c.config.TTL > 0 && c.now().Sub(entry.cachedAt) > c.config.TTL
}

// evict must be called with the write lock held
func (c *InMemoryDecisionCache) evict() {
	var (
		oldestHash string
		oldestAt   time.Time
	)
	for hash, entry := range c.entries {
		if c.expired(entry) {
			delete(c.entries, hash)
			continue
		}
		if oldestHash == "" || entry.cachedAt.Before(oldestAt) {
			oldestHash, oldestAt = hash, entry.cachedAt
		}
	}
	if len(c.entries) >= c.config.MaxEntries && oldestHash != "" {
		delete(c.entries, oldestHash)
	}
}
