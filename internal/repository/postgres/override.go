package postgres

import (
	"context"
	"database/sql"

	"github.com/psiflow/psiflow/internal/domain/override"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/postgres"
	"github.com/psiflow/psiflow/internal/types"
)

type overrideRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

// NewOverrideRepository returns the Postgres-backed courtesy override repository.
func NewOverrideRepository(client *postgres.Client, log *logger.Logger) override.Repository {
	return &overrideRepository{client: client, log: log}
}

const overrideColumns = `
	id, user_id, plan_slug, expires_at, reason, granted_by, active,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

// Create relies on the partial unique index on (user_id) WHERE active to
// reject a second active override for the same user.
func (r *overrideRepository) Create(ctx context.Context, o *override.Override) error {
	if err := o.Validate(); err != nil {
		return err
	}

	if o.ID == "" {
		o.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_OVERRIDE)
	}
	o.Active = true
	if o.BaseModel.CreatedAt.IsZero() {
		o.BaseModel = types.GetDefaultBaseModel(ctx)
	}

	_, err := r.client.Querier(ctx).ExecContext(ctx, `
		INSERT INTO courtesy_overrides (`+overrideColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		o.ID, o.UserID, o.PlanSlug, o.ExpiresAt, o.Reason, o.GrantedBy, o.Active,
		o.TenantID, o.Status, o.CreatedAt, o.UpdatedAt, o.CreatedBy, o.UpdatedBy,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "courtesy_overrides_one_active_per_user") {
			return ierr.NewError("user already has an active override").
				WithHint("Revoke the existing override before granting a new one").
				WithReportableDetails(map[string]any{"user_id": o.UserID}).
				Mark(ierr.ErrAlreadyExists)
		}
		return ierr.WithError(err).
			WithHint("Failed to create override").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *overrideRepository) GetActiveByUser(ctx context.Context, userID string) (*override.Override, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+overrideColumns+`
		FROM courtesy_overrides
		WHERE user_id = $1 AND active
	`, userID)

	o, err := scanOverride(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("no active override").
				WithReportableDetails(map[string]any{"user_id": userID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load override").
			Mark(ierr.ErrDatabase)
	}
	return o, nil
}

func (r *overrideRepository) Get(ctx context.Context, id string) (*override.Override, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+overrideColumns+`
		FROM courtesy_overrides
		WHERE id = $1
	`, id)

	o, err := scanOverride(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("override not found").
				WithReportableDetails(map[string]any{"id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load override").
			Mark(ierr.ErrDatabase)
	}
	return o, nil
}

func (r *overrideRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.client.Querier(ctx).ExecContext(ctx, `
		UPDATE courtesy_overrides
		SET active = false, updated_at = now(), updated_by = $1
		WHERE id = $2 AND active
	`, types.GetUserID(ctx), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to deactivate override").
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("override not found or already inactive").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func scanOverride(row rowScanner) (*override.Override, error) {
	var o override.Override
	err := row.Scan(
		&o.ID, &o.UserID, &o.PlanSlug, &o.ExpiresAt, &o.Reason, &o.GrantedBy, &o.Active,
		&o.TenantID, &o.Status, &o.CreatedAt, &o.UpdatedAt, &o.CreatedBy, &o.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
