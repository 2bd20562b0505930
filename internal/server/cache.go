package server

import (
	"sync"
	"sync/atomic"
	"time"
)

// Rendered is one cached map.
type Rendered struct {
	SVG       []byte
	FooterTop int
}

// MapKey identifies a rendered map. Generation is the dataset it was drawn
// from; maps from an older generation are never stored or served.
type MapKey struct {
	Generation int64
	Preset     string
	Frame      string
	Width      int
}

// RenderCache is a concurrent-safe LRU cache for rendered maps with TTL expiration.
type RenderCache struct {
	mu         sync.RWMutex
	entries    map[MapKey]*renderCacheEntry
	order      []MapKey // LRU order: front=oldest, back=newest
	generation int64
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type renderCacheEntry struct {
	rendered  Rendered
	createdAt time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Generation int64   `json:"generation"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewRenderCache creates a RenderCache with the given capacity and TTL.
// A capacity of zero or less stores nothing.
func NewRenderCache(maxEntries int, ttl time.Duration) *RenderCache {
	return &RenderCache{
		entries:    make(map[MapKey]*renderCacheEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get retrieves a cached map.
func (c *RenderCache) Get(key MapKey) (Rendered, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return Rendered{}, false
	}

	if c.ttl > 0 && time.Since(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return Rendered{}, false
	}

	// Move to back (most recently used).
	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return entry.rendered, true
}

// Put stores a map, evicting the least recently used entry if at capacity.
// A map from an older generation than the newest seen is dropped; one from
// a newer generation evicts every older entry first.
func (c *RenderCache) Put(key MapKey, m Rendered) {
	if c.maxEntries <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case key.Generation < c.generation:
		return
	case key.Generation > c.generation:
		c.generation = key.Generation
		c.retain(func(k MapKey) bool { return k.Generation == key.Generation })
	}

	if _, ok := c.entries[key]; ok {
		c.entries[key] = &renderCacheEntry{rendered: m, createdAt: time.Now()}
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = &renderCacheEntry{rendered: m, createdAt: time.Now()}
	c.order = append(c.order, key)
}

// Advance moves the cache to generation and drops every entry drawn from an
// older one. Going backwards is ignored.
func (c *RenderCache) Advance(generation int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation <= c.generation {
		return 0
	}
	c.generation = generation
	return c.retain(func(k MapKey) bool { return k.Generation >= generation })
}

// InvalidatePreset removes every cached map drawn with preset.
func (c *RenderCache) InvalidatePreset(preset string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retain(func(k MapKey) bool { return k.Preset != preset })
}

// Purge empties the cache. Hit counters and the generation are kept.
func (c *RenderCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[MapKey]*renderCacheEntry)
	c.order = nil
	return n
}

// retain drops entries for which keep is false and returns how many went.
// The caller holds mu.
func (c *RenderCache) retain(keep func(MapKey) bool) int {
	var remaining []MapKey
	removed := 0
	for _, key := range c.order {
		if keep(key) {
			remaining = append(remaining, key)
			continue
		}
		delete(c.entries, key)
		removed++
	}
	c.order = remaining
	return removed
}

// Stats returns cache performance statistics.
func (c *RenderCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	maxEntries := c.maxEntries
	generation := c.generation
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: maxEntries,
		Generation: generation,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}

func (c *RenderCache) removeFromOrder(key MapKey) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
