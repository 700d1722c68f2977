package layout

import (
	"sync"

	"consteval/internal/types"
)

type cacheKey struct {
	Type   types.TypeID
	Reveal Reveal
}

type cacheEntry struct {
	Layout TypeLayout
	Err    *LayoutError
}

type cache struct {
	mu     sync.RWMutex
	byType map[cacheKey]cacheEntry
}

func newCache() *cache {
	return &cache{byType: make(map[cacheKey]cacheEntry, 256)}
}

func (c *cache) get(key cacheKey) (cacheEntry, bool) {
	if c == nil {
		return cacheEntry{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byType[key]
	return e, ok
}

func (c *cache) put(key cacheKey, e *cacheEntry) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e == nil {
		delete(c.byType, key)
		return
	}
	c.byType[key] = *e
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byType)
}
