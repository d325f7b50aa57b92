package coalesce

import (
	"sync"
	"time"
)

// slidingWindow is a per-key rate limiter over a rolling time window. A slot
// is acquired when a provider call is about to execute, so coalesced callers
// that share one execution consume a single slot.
type slidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	calls  map[string][]time.Time
}

func newSlidingWindow(limit int, window time.Duration) *slidingWindow {
	return &slidingWindow{
		limit:  limit,
		window: window,
		calls:  make(map[string][]time.Time),
	}
}

// TryAcquire prunes timestamps older than the window and, if the key is under
// its limit, records the call and returns true. Check and record are a single
// critical section so concurrent callers cannot both take the last slot.
func (w *slidingWindow) TryAcquire(key string, now time.Time) bool {
	if w.limit <= 0 {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	recent := w.calls[key][:0]
	for _, t := range w.calls[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= w.limit {
		w.calls[key] = recent
		return false
	}

	w.calls[key] = append(recent, now)
	return true
}

// Release removes a previously acquired slot. Executions that fail do not
// count against the window, so callers can retry a transient provider error
// without waiting it out.
func (w *slidingWindow) Release(key string, at time.Time) {
	if w.limit <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	calls := w.calls[key]
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].Equal(at) {
			w.calls[key] = append(calls[:i], calls[i+1:]...)
			return
		}
	}
}

// Remaining reports how many slots the key has left in the current window.
func (w *slidingWindow) Remaining(key string, now time.Time) int {
	if w.limit <= 0 {
		return -1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := now.Add(-w.window)
	used := 0
	for _, t := range w.calls[key] {
		if t.After(cutoff) {
			used++
		}
	}
	if used > w.limit {
		used = w.limit
	}
	return w.limit - used
}
