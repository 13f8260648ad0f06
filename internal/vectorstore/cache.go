package vectorstore

import (
	"sync"
)

// embedCacheCap bounds the in-process query embedding cache.
// When full, the whole map is dropped rather than tracking LRU order;
// query embeddings are cheap to regenerate and the cache exists to absorb
// repeated identical queries (health warm-ups, paginated UIs).
const embedCacheCap = 1024

// embedCache caches query-text → embedding with hit/miss counters.
// Safe for concurrent use.
type embedCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	hits    uint64
	misses  uint64
}

func newEmbedCache() *embedCache {
	return &embedCache{entries: make(map[string][]float32)}
}

// get returns the cached embedding for text, if present.
func (c *embedCache) get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vec, ok := c.entries[text]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return vec, ok
}

// put stores an embedding, resetting the map when the cap is reached.
func (c *embedCache) put(text string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= embedCacheCap {
		c.entries = make(map[string][]float32)
	}
	c.entries[text] = vec
}

// clear drops all cached embeddings. Counters are preserved so hit-rate
// history survives an optimization pass; use resetCounters for those.
func (c *embedCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]float32)
}

// stats returns the hit and miss counters.
func (c *embedCache) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// resetCounters zeroes the hit/miss counters.
func (c *embedCache) resetCounters() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits, c.misses = 0, 0
}

// size returns the number of cached entries.
func (c *embedCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
