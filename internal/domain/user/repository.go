package user

import (
	"context"
)

// Repository defines read access to user records.
type Repository interface {
	// Get returns a user by ID.
	Get(ctx context.Context, id string) (*User, error)

	// GetByEmail returns the user with the given contact address.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
