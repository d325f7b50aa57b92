package cache

import (
	"context"
	"time"
)

// Cache is the interface implemented by every cache tier. Misses and
// backend failures are both reported as absence; callers treat the cache
// as advisory.
type Cache interface {
	// Get retrieves a value, reporting whether a fresh entry exists.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value with the given expiration. A zero expiration
	// uses the tier's default.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	// TTL reports the remaining lifetime of a key. ok is false when the
	// key is absent, never expires, or the tier cannot determine it.
	TTL(ctx context.Context, key string) (ttl time.Duration, ok bool)

	// Delete removes a key.
	Delete(ctx context.Context, key string)

	// DeleteByPrefix removes every key with the given prefix.
	DeleteByPrefix(ctx context.Context, prefix string)

	// Flush removes all entries.
	Flush(ctx context.Context)
}
