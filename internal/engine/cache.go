package engine

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"mdversion/internal/domain"
)

type activeEntry struct {
	version domain.Version
	ok      bool
}

// activeCache holds active-version lookups per identity. Each invalidation bumps the identity's
// generation; a fill computed under an older generation is dropped.
type activeCache struct {
	items *cache.Cache

	mu   sync.Mutex
	gens map[string]uint64
}

func newActiveCache(ttl time.Duration) *activeCache {
	return &activeCache{
		items: cache.New(ttl, 2*ttl),
		gens:  map[string]uint64{},
	}
}

func (c *activeCache) get(key string) (activeEntry, bool) {
	v, found := c.items.Get(key)
	if !found {
		return activeEntry{}, false
	}
	return v.(activeEntry), true
}

// generation must be read before loading the document that feeds fill.
func (c *activeCache) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[key]
}

func (c *activeCache) fill(key string, gen uint64, entry activeEntry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return false
	}
	c.items.SetDefault(key, entry)
	return true
}

func (c *activeCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[key]++
	c.items.Delete(key)
}
