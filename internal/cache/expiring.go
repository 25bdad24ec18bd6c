package cache

import (
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Expiring is a set of keys bounded both by entry count and by a per-entry time to live.
// Whichever bound is hit first removes the entry. Entries are never refreshed by reads.
type Expiring[K comparable] struct {
	c   *expirable.LRU[K, struct{}]
	ttl time.Duration
}

// NewExpiring creates an Expiring set of at most size keys, each living for ttl after it was added.
func NewExpiring[K comparable](size int, ttl time.Duration) (*Expiring[K], error) {
	if size <= 0 {
		return nil, fmt.Errorf("cache: expiring size must be positive, got %d", size)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: expiring ttl must be positive, got %s", ttl)
	}
	return &Expiring[K]{c: expirable.NewLRU[K, struct{}](size, nil, ttl), ttl: ttl}, nil
}

// Has reports whether key was added and has not yet expired or been evicted.
func (c *Expiring[K]) Has(key K) bool {
	// Get filters expired entries; Contains does not.
	_, ok := c.c.Get(key)
	return ok
}

// Add records key, restarting its TTL if it was already present.
func (c *Expiring[K]) Add(key K) {
	c.c.Add(key, struct{}{})
}

// Remove deletes key if present.
func (c *Expiring[K]) Remove(key K) {
	c.c.Remove(key)
}

// Len returns the number of stored keys. Expired keys not yet swept by the background cleaner
// are still counted.
func (c *Expiring[K]) Len() int {
	return c.c.Len()
}

// TTL returns the configured time to live.
func (c *Expiring[K]) TTL() time.Duration {
	return c.ttl
}
