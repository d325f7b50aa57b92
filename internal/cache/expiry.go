package cache

import "time"

const (
	// ExpiryDefaultInMemory bounds entries in the per-process tier.
	ExpiryDefaultInMemory = 5 * time.Minute

	// ExpiryDefaultRedis bounds entries in the durable cross-session tier.
	ExpiryDefaultRedis = 30 * time.Minute
)
