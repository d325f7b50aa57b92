package coalesce

import (
	"context"
	"sync"
	"time"

	"github.com/psiflow/psiflow/internal/cache"
	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/types"
)

// flight is one pending debounced execution. Every caller that arrives while
// the flight is open shares its result.
type flight struct {
	timer      *time.Timer
	deadline   time.Time
	user       string
	acquiredAt time.Time
	done       chan struct{}
	once       sync.Once
	result     interface{}
	err        error
}

// Manager coalesces concurrent sync requests per user and operation. A burst
// of calls collapses into a single debounced execution, fronted by two cache
// tiers and a per-user sliding-window rate limit. All state is owned by the
// instance so tests can run managers side by side.
type Manager struct {
	logger  *logger.Logger
	cfg     config.CoalesceConfig
	memory  cache.Cache
	durable cache.Cache
	limiter *slidingWindow

	mu      sync.Mutex
	flights map[string]*flight
}

// NewManager creates a coalescing manager. The durable tier may be nil when
// Redis is not configured; the memory tier is required.
func NewManager(cfg config.CoalesceConfig, memory, durable cache.Cache, log *logger.Logger) *Manager {
	return &Manager{
		logger:  log,
		cfg:     cfg,
		memory:  memory,
		durable: durable,
		limiter: newSlidingWindow(cfg.RateLimitCalls, cfg.RateLimitWindow),
		flights: make(map[string]*flight),
	}
}

// Do runs fn at most once per debounce window for the user and operation,
// serving repeat calls from cache or from the shared in-flight execution.
// Results are cached only on success.
func Do[T any](ctx context.Context, m *Manager, op types.SyncOperation, userID string, fn func(context.Context) (*T, error)) (*T, error) {
	raw, err := m.do(ctx, op, userID, func(c context.Context) (interface{}, error) {
		return fn(c)
	})
	if err != nil {
		return nil, err
	}

	typed, ok := cache.UnmarshalCacheValue[T](raw)
	if !ok {
		return nil, ierr.NewError("cached sync result has unexpected shape").
			WithReportableDetails(map[string]any{"cache_key": op.CacheKey(userID)}).
			Mark(ierr.ErrInternal)
	}
	return typed, nil
}

func (m *Manager) do(ctx context.Context, op types.SyncOperation, userID string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	key := op.CacheKey(userID)

	if v, ok := m.memory.Get(ctx, key); ok {
		m.logger.Debugw("sync served from memory cache", "cache_key", key)
		return v, nil
	}
	if m.durable != nil {
		if v, ok := m.durable.Get(ctx, key); ok {
			m.logger.Debugw("sync served from durable cache", "cache_key", key)
			// Backfilling must not extend the entry's freshness window,
			// so the memory copy inherits the durable remaining lifetime.
			ttl := op.DefaultTTL()
			if remaining, known := m.durable.TTL(ctx, key); known && remaining < ttl {
				ttl = remaining
			}
			m.memory.Set(ctx, key, v, ttl)
			return v, nil
		}
	}

	m.mu.Lock()
	if f, ok := m.flights[key]; ok {
		m.extend(f)
		m.mu.Unlock()
		return m.wait(ctx, f)
	}

	now := time.Now()
	if !m.limiter.TryAcquire(userID, now) {
		m.mu.Unlock()
		return nil, ierr.NewError("too many sync requests").
			WithHint("Wait for the rate limit window to pass before retrying").
			WithReportableDetails(map[string]any{
				"limit":  m.cfg.RateLimitCalls,
				"window": m.cfg.RateLimitWindow.String(),
			}).
			Mark(ierr.ErrRateLimit)
	}

	f := &flight{
		deadline:   now.Add(m.cfg.MaxWait),
		user:       userID,
		acquiredAt: now,
		done:       make(chan struct{}),
	}
	// Values like the caller identity survive; cancellation of the first
	// caller must not abort an execution other callers joined.
	execCtx := context.WithoutCancel(ctx)
	f.timer = time.AfterFunc(m.cfg.Delay, func() {
		m.run(execCtx, key, op, f, fn)
	})
	m.flights[key] = f
	m.mu.Unlock()

	return m.wait(ctx, f)
}

// extend pushes the flight's timer back by the debounce delay, capped by the
// flight's absolute deadline so a steady stream of callers cannot starve the
// execution forever. Callers hold m.mu.
func (m *Manager) extend(f *flight) {
	delay := m.cfg.Delay
	if remaining := time.Until(f.deadline); remaining < delay {
		delay = remaining
	}
	if delay < 0 {
		delay = 0
	}
	if f.timer.Stop() {
		f.timer.Reset(delay)
	}
}

func (m *Manager) run(ctx context.Context, key string, op types.SyncOperation, f *flight, fn func(context.Context) (interface{}, error)) {
	f.once.Do(func() {
		f.result, f.err = fn(ctx)

		if f.err == nil {
			ttl := op.DefaultTTL()
			m.memory.Set(ctx, key, f.result, ttl)
			if m.durable != nil {
				m.durable.Set(ctx, key, f.result, ttl)
			}
		} else {
			// Only successful executions count against the window.
			m.limiter.Release(f.user, f.acquiredAt)
			m.logger.Warnw("coalesced sync execution failed", "cache_key", key, "error", f.err)
		}

		m.mu.Lock()
		delete(m.flights, key)
		m.mu.Unlock()

		close(f.done)
	})
}

func (m *Manager) wait(ctx context.Context, f *flight) (interface{}, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ierr.WithError(ctx.Err()).
			WithHint("Request cancelled while waiting for sync").
			Mark(ierr.ErrSystem)
	}
}

// Invalidate drops both cache tiers for the user so the next call re-resolves
// from the sources of truth.
func (m *Manager) Invalidate(ctx context.Context, userID string) {
	for _, op := range []types.SyncOperation{types.SyncOperationCheck, types.SyncOperationForce} {
		m.InvalidateOp(ctx, op, userID)
	}
}

// InvalidateOp drops the cache entry for a single operation.
func (m *Manager) InvalidateOp(ctx context.Context, op types.SyncOperation, userID string) {
	key := op.CacheKey(userID)
	m.memory.Delete(ctx, key)
	if m.durable != nil {
		m.durable.Delete(ctx, key)
	}
}
