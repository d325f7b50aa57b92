package subscription

import (
	"context"
)

// Repository defines the interface for assignment persistence operations.
// UpsertActive is the only write path; nothing else mutates assignments.
type Repository interface {
	// UpsertActive atomically cancels every active assignment for the
	// user and inserts the given one as the new active assignment. Safe
	// under concurrent invocation for the same user.
	UpsertActive(ctx context.Context, assignment *Assignment) (*Assignment, error)

	// GetActiveByUser returns the user's current active assignment.
	GetActiveByUser(ctx context.Context, userID string) (*Assignment, error)

	// ListByUser returns the user's full assignment history, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Assignment, error)
}
