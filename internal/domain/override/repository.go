package override

import (
	"context"
)

// Repository defines the interface for courtesy override persistence.
type Repository interface {
	// Create inserts a new active override. Returns ErrAlreadyExists if
	// the user already has an active override; callers must revoke the
	// existing grant first.
	Create(ctx context.Context, override *Override) error

	// GetActiveByUser returns the user's active override, or ErrNotFound.
	GetActiveByUser(ctx context.Context, userID string) (*Override, error)

	// Get returns an override by ID.
	Get(ctx context.Context, id string) (*Override, error)

	// Deactivate marks an override inactive.
	Deactivate(ctx context.Context, id string) error
}
