package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/logger"
)

// With the durable cache disabled the app must boot without a Redis
// connection; the coalescer then runs on the memory tier alone.
func TestRedisSkippedWhenCacheDisabled(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	log := logger.GetLogger()

	client, err := newRedisClient(cfg, log)
	require.NoError(t, err)
	require.Nil(t, client)

	require.NotNil(t, newCoalescer(cfg, client, log))
}
