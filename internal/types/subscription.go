package types

import (
	"fmt"
	"time"
)

// AssignmentStatus is the lifecycle state of a local plan assignment.
// Assignments are never deleted; superseded rows become cancelled.
type AssignmentStatus string

const (
	AssignmentStatusActive    AssignmentStatus = "active"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

// ProviderSubscriptionStatus mirrors the billing provider's subscription
// status values we care about.
type ProviderSubscriptionStatus string

const (
	ProviderSubscriptionActive   ProviderSubscriptionStatus = "active"
	ProviderSubscriptionTrialing ProviderSubscriptionStatus = "trialing"
	ProviderSubscriptionPastDue  ProviderSubscriptionStatus = "past_due"
	ProviderSubscriptionCanceled ProviderSubscriptionStatus = "canceled"
	ProviderSubscriptionUnpaid   ProviderSubscriptionStatus = "unpaid"
)

// Entitled reports whether the provider status grants access to a paid plan.
func (s ProviderSubscriptionStatus) Entitled() bool {
	return s == ProviderSubscriptionActive || s == ProviderSubscriptionTrialing
}

// SyncOperation distinguishes the pull-sync entry points for caching and
// rate-limiting purposes.
type SyncOperation string

const (
	// SyncOperationCheck is the routine background status check.
	SyncOperationCheck SyncOperation = "sync"
	// SyncOperationForce is the user-triggered repair sync.
	SyncOperationForce SyncOperation = "force"
)

// CacheKey returns the per-user cache key for this operation, shared by the
// in-memory and durable tiers.
func (o SyncOperation) CacheKey(userID string) string {
	return fmt.Sprintf("subscription-cache-%s-%s", userID, o)
}

// DefaultTTL returns the freshness window for results of this operation.
// Forced syncs are critical and go stale quickly; routine checks can be
// served from cache for minutes.
func (o SyncOperation) DefaultTTL() time.Duration {
	if o == SyncOperationForce {
		return 30 * time.Second
	}
	return 5 * time.Minute
}
