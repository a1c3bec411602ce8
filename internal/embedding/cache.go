package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an LRU of verse text to vector. A nil *Cache is a disabled cache.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to size vectors. Size <= 0 returns nil (disabled).
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached vector for text if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(text)
}

// Add stores vec for text, evicting the least recently used entry if at capacity.
func (c *Cache) Add(text string, vec []float32) {
	if c == nil {
		return
	}
	c.lru.Add(text, vec)
}

// Purge empties the cache.
func (c *Cache) Purge() {
	if c == nil {
		return
	}
	c.lru.Purge()
}

// Len returns the number of cached vectors.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
