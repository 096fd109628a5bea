package geocode

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

// cache is a tiny in-memory TTL cache for reverse-geocode results, keyed
// by rounded coordinates so nearby requests share an entry.
type cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
}

type cacheEntry struct {
	addr string
	ts   time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{store: make(map[string]cacheEntry), ttl: ttl}
}

func keyFor(c models.Coord) string {
	return fmt.Sprintf("%.4f,%.4f", c.Lat, c.Lon)
}

func (c *cache) get(loc models.Coord) (string, bool) {
	k := keyFor(loc)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if time.Since(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return "", false
	}
	return e.addr, true
}

func (c *cache) set(loc models.Coord, addr string) {
	c.mu.Lock()
	c.store[keyFor(loc)] = cacheEntry{addr: addr, ts: time.Now()}
	c.mu.Unlock()
}
