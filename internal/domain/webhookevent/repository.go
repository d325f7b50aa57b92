package webhookevent

import (
	"context"
)

// Repository defines the interface for the processed-event ledger.
type Repository interface {
	// Create appends a ledger entry. Returns ErrAlreadyExists when the
	// event ID was already recorded; the unique constraint is the
	// serialization point against concurrent redelivery.
	Create(ctx context.Context, event *ProcessedEvent) error

	// Exists reports whether the event ID was already processed.
	Exists(ctx context.Context, eventID string) (bool, error)
}
