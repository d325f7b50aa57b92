package cache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/psiflow/psiflow/internal/logger"
)

// InMemoryCache implements the Cache interface using patrickmn/go-cache.
// Values are stored as live objects; no serialization happens on this tier.
type InMemoryCache struct {
	store *gocache.Cache
	log   *logger.Logger
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache(log *logger.Logger) *InMemoryCache {
	return &InMemoryCache{
		store: gocache.New(ExpiryDefaultInMemory, 10*time.Minute),
		log:   log,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return c.store.Get(key)
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) {
	if expiration == 0 {
		expiration = ExpiryDefaultInMemory
	}
	c.store.Set(key, value, expiration)
}

// TTL reports the remaining lifetime of a key
func (c *InMemoryCache) TTL(ctx context.Context, key string) (time.Duration, bool) {
	_, expiresAt, ok := c.store.GetWithExpiration(key)
	if !ok || expiresAt.IsZero() {
		return 0, false
	}
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(ctx context.Context, key string) {
	c.store.Delete(key)
}

// DeleteByPrefix removes all keys with the given prefix
func (c *InMemoryCache) DeleteByPrefix(ctx context.Context, prefix string) {
	for key := range c.store.Items() {
		if strings.HasPrefix(key, prefix) {
			c.store.Delete(key)
		}
	}
}

// Flush removes all items from the cache
func (c *InMemoryCache) Flush(ctx context.Context) {
	c.store.Flush()
}
