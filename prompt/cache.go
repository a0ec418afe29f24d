package prompt

import "sync"

// cacheSize matches the reference implementation's
// "#[cached::proc_macro::cached(size = 64)]" bound on its parsed-prompt
// cache.
const cacheSize = 64

// lru is a tiny bounded cache of parsed prompt specs, keyed by the raw
// spec string: PS1/PS2/PS4 are parsed on practically every prompt
// render but change rarely, so caching the parse avoids re-scanning the
// same handful of specs over and over.
type lru struct {
	mu    sync.Mutex
	order []string
	data  map[string][]piece
}

var cache = newLRU()

func newLRU() *lru {
	return &lru{data: make(map[string][]piece, cacheSize)}
}

func (c *lru) get(key string) ([]piece, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *lru) put(key string, v []piece) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.data[key]; !exists {
		if len(c.order) >= cacheSize {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.data, oldest)
		}
		c.order = append(c.order, key)
	}
	c.data[key] = v
}
