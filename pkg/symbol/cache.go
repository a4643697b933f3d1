package symbol

import (
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Cache memoizes encoded symbols by (text, kind, size). It is purely an
// optimization: Reset may be called at any time and lookups simply
// re-encode. Concurrent lookups for the same key share one encoding.
type Cache struct {
	mu      sync.RWMutex
	entries map[cacheKey]*Symbol
	group   singleflight.Group
}

type cacheKey struct {
	text string
	kind Kind
	size int
}

func (k cacheKey) String() string {
	return k.kind.String() + ":" + strconv.Itoa(k.size) + ":" + k.text
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*Symbol)}
}

// Get returns the cached symbol for the key or encodes and stores it.
// Encoding errors are not cached.
func (c *Cache) Get(text string, kind Kind, size int) (*Symbol, error) {
	if size <= 0 {
		size = DefaultSize
	}
	key := cacheKey{text: text, kind: kind, size: size}

	c.mu.RLock()
	sym, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return sym, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		sym, err := Encode(text, kind, size)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = sym
		c.mu.Unlock()
		return sym, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Symbol), nil
}

// Len returns the number of cached symbols.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every cached symbol.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]*Symbol)
	c.mu.Unlock()
}
