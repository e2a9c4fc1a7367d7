// Package cache holds the node read cache backends behind ports.Cache.
package cache

import (
	"context"
	"sync"
	"time"

	"ontology/application/ports"
)

// InMemoryCache provides a simple in-memory cache implementation
type InMemoryCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value     []byte
	expiresAt time.Time
}

var _ ports.Cache = (*InMemoryCache)(nil)

// NewInMemoryCache creates a new in-memory cache. Expired items are swept every
// interval until ctx is done.
func NewInMemoryCache(ctx context.Context, interval time.Duration) *InMemoryCache {
	cache := &InMemoryCache{
		items: make(map[string]cacheItem),
		now:   time.Now,
	}
	if interval > 0 {
		go cache.cleanupExpired(ctx, interval)
	}
	return cache
}

// Get retrieves a value from cache
func (c *InMemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, exists := c.items[key]
	if !exists || c.expired(item) {
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

// Set stores a value in cache. A zero ttl keeps the item until it is deleted.
func (c *InMemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := cacheItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = item
	return nil
}

// Delete removes values from cache
func (c *InMemoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		delete(c.items, key)
	}
	return nil
}

// Clear removes all values from cache
func (c *InMemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]cacheItem)
	return nil
}

func (c *InMemoryCache) expired(item cacheItem) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

// cleanupExpired periodically removes expired items
func (c *InMemoryCache) cleanupExpired(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			for key, item := range c.items {
				if c.expired(item) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}
