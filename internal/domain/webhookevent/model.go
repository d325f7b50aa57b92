package webhookevent

import (
	"time"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// ProcessedEvent is a dedup ledger entry for an inbound provider event.
// EventID is unique: a second delivery of the same event is a no-op replay.
type ProcessedEvent struct {
	ID          string                 `json:"id"`
	EventID     string                 `json:"event_id"`
	EventType   types.WebhookEventType `json:"event_type"`
	Outcome     map[string]any         `json:"outcome,omitempty"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// Validate validates the ledger entry
func (e *ProcessedEvent) Validate() error {
	if e.EventID == "" {
		return ierr.NewError("event_id is required").Mark(ierr.ErrValidation)
	}
	return nil
}
