package coalesce

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/testutil"
	"github.com/psiflow/psiflow/internal/types"
)

type syncResult struct {
	Plan string `json:"plan"`
}

func newTestManager(t *testing.T, cfg config.CoalesceConfig) (*Manager, *testutil.InMemoryCache, *testutil.InMemoryCache) {
	t.Helper()
	memory := testutil.NewInMemoryCache()
	durable := testutil.NewInMemoryCache()
	return NewManager(cfg, memory, durable, logger.GetLogger()), memory, durable
}

func defaultCfg() config.CoalesceConfig {
	return config.CoalesceConfig{
		Delay:           10 * time.Millisecond,
		MaxWait:         100 * time.Millisecond,
		RateLimitCalls:  10,
		RateLimitWindow: time.Minute,
	}
}

func TestConcurrentCallsCollapseToOneExecution(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*syncResult, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
			require.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, "gestao", res.Plan)
	}
}

func TestFreshCacheHitSkipsExecution(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)

	res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, "gestao", res.Plan)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestStaleMemoryFallsBackToDurableTier(t *testing.T) {
	m, memory, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)

	memory.ExpireNow(types.SyncOperationCheck.CacheKey("user_1"))

	res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, "gestao", res.Plan)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions), "durable tier should satisfy the call")
}

func TestOperationsAreCachedIndependently(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	_, err = Do(ctx, m, types.SyncOperationForce, "user_1", fn)
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&executions))
}

func TestFailuresAreNotCached(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	failing := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return nil, ierr.NewError("provider down").Mark(ierr.ErrHTTPClient)
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", failing)
	require.Error(t, err)

	ok := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "free"}, nil
	}
	res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", ok)
	require.NoError(t, err)
	assert.Equal(t, "free", res.Plan)
	assert.Equal(t, int32(2), atomic.LoadInt32(&executions))
}

func TestFailedExecutionReturnsRateLimitSlot(t *testing.T) {
	cfg := defaultCfg()
	cfg.RateLimitCalls = 1
	m, _, _ := newTestManager(t, cfg)
	ctx := context.Background()

	failing := func(ctx context.Context) (*syncResult, error) {
		return nil, ierr.NewError("provider down").Mark(ierr.ErrHTTPClient)
	}
	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", failing)
	require.Error(t, err)
	require.False(t, ierr.IsRateLimit(err))

	// The failure released its slot, so a retry executes immediately.
	ok := func(ctx context.Context) (*syncResult, error) {
		return &syncResult{Plan: "free"}, nil
	}
	res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", ok)
	require.NoError(t, err)
	assert.Equal(t, "free", res.Plan)
}

func TestRateLimitBlocksExcessCallsThenRecovers(t *testing.T) {
	cfg := defaultCfg()
	cfg.RateLimitCalls = 3
	cfg.RateLimitWindow = 200 * time.Millisecond
	m, memory, durable := newTestManager(t, cfg)
	ctx := context.Background()

	fn := func(ctx context.Context) (*syncResult, error) {
		return &syncResult{Plan: "gestao"}, nil
	}

	// Each call must reach the limiter, so drop the caches in between.
	for i := 0; i < 3; i++ {
		_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
		require.NoError(t, err)
		memory.Flush(ctx)
		durable.Flush(ctx)
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.Error(t, err)
	assert.True(t, ierr.IsRateLimit(err))

	// Another user is unaffected.
	_, err = Do(ctx, m, types.SyncOperationCheck, "user_2", fn)
	require.NoError(t, err)

	// After the window slides, the first user recovers.
	time.Sleep(cfg.RateLimitWindow + 20*time.Millisecond)
	_, err = Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
}

func TestMaxWaitBoundsDebounce(t *testing.T) {
	cfg := defaultCfg()
	cfg.Delay = 30 * time.Millisecond
	cfg.MaxWait = 60 * time.Millisecond
	m, _, _ := newTestManager(t, cfg)
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	start := time.Now()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
		assert.NoError(t, err)
	}()

	// Keep poking the flight; without the failsafe this would debounce
	// forever.
	for i := 0; i < 8; i++ {
		time.Sleep(20 * time.Millisecond)
		go func() {
			_, _ = Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
		}()
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("first caller never completed")
	}

	elapsed := time.Since(start)
	assert.Less(t, elapsed, 500*time.Millisecond, "execution must fire by the deadline")
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestCancelledWaiterReturnsWithoutAbortingFlight(t *testing.T) {
	cfg := defaultCfg()
	cfg.Delay = 50 * time.Millisecond
	m, _, _ := newTestManager(t, cfg)

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	cancelCtx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := Do(cancelCtx, m, types.SyncOperationCheck, "user_1", fn)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.Error(t, <-errCh)

	// The flight still runs and seeds the cache for the next caller.
	time.Sleep(100 * time.Millisecond)
	res, err := Do(context.Background(), m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, "gestao", res.Plan)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestDurableBackfillDoesNotExtendFreshness(t *testing.T) {
	m, _, durable := newTestManager(t, defaultCfg())
	ctx := context.Background()

	key := types.SyncOperationCheck.CacheKey("user_1")
	durable.Set(ctx, key, &syncResult{Plan: "gestao"}, 40*time.Millisecond)

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "free"}, nil
	}

	res, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, "gestao", res.Plan)
	assert.Equal(t, int32(0), atomic.LoadInt32(&executions))

	time.Sleep(60 * time.Millisecond)

	// The memory backfill expires with the durable entry, not on its own
	// longer default TTL.
	res, err = Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, "free", res.Plan)
	assert.Equal(t, int32(1), atomic.LoadInt32(&executions))
}

func TestInvalidateDropsBothTiers(t *testing.T) {
	m, _, _ := newTestManager(t, defaultCfg())
	ctx := context.Background()

	var executions int32
	fn := func(ctx context.Context) (*syncResult, error) {
		atomic.AddInt32(&executions, 1)
		return &syncResult{Plan: "gestao"}, nil
	}

	_, err := Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)

	m.Invalidate(ctx, "user_1")

	_, err = Do(ctx, m, types.SyncOperationCheck, "user_1", fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&executions))
}
