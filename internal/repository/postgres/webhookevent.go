package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psiflow/psiflow/internal/domain/webhookevent"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/postgres"
	"github.com/psiflow/psiflow/internal/types"
)

type webhookEventRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

// NewWebhookEventRepository returns the Postgres-backed processed-event ledger.
func NewWebhookEventRepository(client *postgres.Client, log *logger.Logger) webhookevent.Repository {
	return &webhookEventRepository{client: client, log: log}
}

func (r *webhookEventRepository) Create(ctx context.Context, e *webhookevent.ProcessedEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}

	if e.ID == "" {
		e.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_WEBHOOK_EVENT)
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}

	var outcome []byte
	if e.Outcome != nil {
		var err error
		outcome, err = json.Marshal(e.Outcome)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to marshal event outcome").
				Mark(ierr.ErrInternal)
		}
	}

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO processed_webhook_events (id, event_id, event_type, outcome, processed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.ID, e.EventID, e.EventType, outcome, e.ProcessedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err, "") {
			return ierr.NewError("event already processed").
				WithReportableDetails(map[string]any{"event_id": e.EventID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to append event ledger entry").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *webhookEventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM processed_webhook_events WHERE event_id = $1)
	`, eventID).Scan(&exists)
	if err != nil {
		return false, ierr.WithError(err).
			WithHint("Failed to check event ledger").
			Mark(ierr.ErrDatabase)
	}
	return exists, nil
}
