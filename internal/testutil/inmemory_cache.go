package testutil

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/psiflow/psiflow/internal/cache"
)

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// InMemoryCache implements cache.Cache with explicit expirations, so tests
// can assert freshness windows without waiting on background eviction.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
	}
}

var _ cache.Cache = (*InMemoryCache)(nil)

func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := cacheEntry{value: value}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	c.entries[key] = entry
}

func (c *InMemoryCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0, false
	}
	remaining := time.Until(entry.expiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *InMemoryCache) DeleteByPrefix(ctx context.Context, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

func (c *InMemoryCache) Flush(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// ExpireNow force-expires a key so tests can simulate a stale entry.
func (c *InMemoryCache) ExpireNow(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[key]; ok {
		entry.expiresAt = time.Now().Add(-time.Second)
		c.entries[key] = entry
	}
}

// Len returns the number of live entries.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
