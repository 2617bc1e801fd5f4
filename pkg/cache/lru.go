// Package cache caches read API responses between dashboard refreshes.
package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Response is a cached HTTP response body with its content type.
type Response struct {
	ContentType string
	Body        []byte
}

// LRUCache is a thread-safe response cache bounded by size and TTL.
// InvalidateAll starts a new generation; SetIfGeneration drops writes
// computed in an earlier one.
type LRUCache struct {
	lru *expirable.LRU[string, Response]

	mu         sync.Mutex
	generation uint64
}

// NewLRUCache creates a cache holding at most maxSize entries, each for ttl.
func NewLRUCache(maxSize int, ttl time.Duration) *LRUCache {
	if maxSize < 1 {
		maxSize = 1
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &LRUCache{lru: expirable.NewLRU[string, Response](maxSize, nil, ttl)}
}

// Get returns the cached response for key.
func (c *LRUCache) Get(key string) (Response, bool) {
	return c.lru.Get(key)
}

// Set stores a response under key, evicting the least recently used entry
// when full.
func (c *LRUCache) Set(key string, resp Response) {
	c.lru.Add(key, resp)
}

// Generation returns the current generation.
func (c *LRUCache) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// SetIfGeneration stores resp only if no InvalidateAll happened since gen
// was read. It reports whether the entry was stored.
func (c *LRUCache) SetIfGeneration(key string, resp Response, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.lru.Add(key, resp)
	return true
}

// Invalidate removes a single key.
func (c *LRUCache) Invalidate(key string) {
	c.lru.Remove(key)
}

// InvalidateAll removes every entry and starts a new generation.
func (c *LRUCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
}

// Len returns the number of live entries.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}
