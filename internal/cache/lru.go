// Package cache holds the two result caches used by the lookup engine: a size-bounded LRU for
// resolved values and a size- and time-bounded LRU for confirmed misses.
package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a thread-safe least-recently-used cache with a fixed entry limit and no expiry.
// Get and Add both mark an entry as recently used.
type LRU[K comparable, V any] struct {
	c *lru.Cache[K, V]
}

// NewLRU creates an LRU holding at most size entries. size must be positive.
func NewLRU[K comparable, V any](size int) (*LRU[K, V], error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache: lru size must be positive, got %d", size)
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, fmt.Errorf("cache: create lru: %w", err)
	}
	return &LRU[K, V]{c: c}, nil
}

// Get returns the value for key and whether it was present.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	return c.c.Get(key)
}

// Add stores value under key, evicting the least recently used entry when full.
// It reports whether an eviction happened.
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.c.Add(key, value)
}

// Contains reports presence without touching recency.
func (c *LRU[K, V]) Contains(key K) bool {
	return c.c.Contains(key)
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.c.Remove(key)
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	return c.c.Len()
}
