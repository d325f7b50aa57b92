package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// LockScope represents the scope of a database advisory lock.
type LockScope string

const (
	// LockScopeAssignment serializes reconciliation writes per user.
	LockScopeAssignment LockScope = "assignment"
)

// LockRequest describes an advisory lock to acquire inside a transaction.
type LockRequest struct {
	Key     string
	Timeout *time.Duration
}

// GetTimeout returns the configured timeout, defaulting to 30 seconds.
func (r LockRequest) GetTimeout() time.Duration {
	if r.Timeout == nil {
		return 30 * time.Second
	}
	return *r.Timeout
}

// GenerateLockKey builds a deterministic lock key from a scope and params.
// Postgres hashes the string internally via hashtext().
func GenerateLockKey(scope LockScope, params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(scope))
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(":%s=%v", k, params[k]))
	}
	return b.String()
}
