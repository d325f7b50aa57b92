package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/psiflow/psiflow/internal/domain/subscription"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/postgres"
	"github.com/psiflow/psiflow/internal/types"
)

type subscriptionRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

// NewSubscriptionRepository returns the Postgres-backed assignment repository.
func NewSubscriptionRepository(client *postgres.Client, log *logger.Logger) subscription.Repository {
	return &subscriptionRepository{client: client, log: log}
}

const assignmentColumns = `
	id, user_id, plan_slug, assignment_status, provider_customer_id, tier_label,
	subscribed, starts_at, expires_at, cancel_at_period_end,
	tenant_id, status, created_at, updated_at, created_by, updated_by`

// UpsertActive is the reconciliation procedure's single write path. It runs
// in one transaction under a per-user advisory lock: concurrent invocations
// for the same user serialize here, the last writer wins, and no reader ever
// observes zero or two active assignments.
func (r *subscriptionRepository) UpsertActive(ctx context.Context, a *subscription.Assignment) (*subscription.Assignment, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}

	if a.ID == "" {
		a.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ASSIGNMENT)
	}
	a.AssignmentStatus = types.AssignmentStatusActive
	if a.StartsAt.IsZero() {
		a.StartsAt = time.Now().UTC()
	}
	if a.BaseModel.CreatedAt.IsZero() {
		a.BaseModel = types.GetDefaultBaseModel(ctx)
	}

	err := r.client.WithTx(ctx, func(ctx context.Context) error {
		lockKey := types.GenerateLockKey(types.LockScopeAssignment, map[string]any{
			"user_id": a.UserID,
		})
		if err := r.client.LockKey(ctx, types.LockRequest{Key: lockKey}); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to serialize assignment write").
				Mark(ierr.ErrDatabase)
		}

		q := r.client.Querier(ctx)

		_, err := q.ExecContext(ctx, `
			UPDATE plan_assignments
			SET assignment_status = $1, updated_at = now(), updated_by = $2
			WHERE user_id = $3 AND assignment_status = $4
		`, types.AssignmentStatusCancelled, types.GetUserID(ctx), a.UserID, types.AssignmentStatusActive)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to supersede previous assignments").
				Mark(ierr.ErrDatabase)
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO plan_assignments (`+assignmentColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		`,
			a.ID, a.UserID, a.PlanSlug, a.AssignmentStatus, a.ProviderCustomerID, a.TierLabel,
			a.Subscribed, a.StartsAt, a.ExpiresAt, a.CancelAtPeriodEnd,
			a.TenantID, a.Status, a.CreatedAt, a.UpdatedAt, a.CreatedBy, a.UpdatedBy,
		)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to insert assignment").
				WithReportableDetails(map[string]any{
					"user_id":   a.UserID,
					"plan_slug": a.PlanSlug,
				}).
				Mark(ierr.ErrDatabase)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return a, nil
}

func (r *subscriptionRepository) GetActiveByUser(ctx context.Context, userID string) (*subscription.Assignment, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM plan_assignments
		WHERE user_id = $1 AND assignment_status = $2
	`, userID, types.AssignmentStatusActive)

	a, err := scanAssignment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("no active assignment").
				WithHint("User has no active plan assignment").
				WithReportableDetails(map[string]any{"user_id": userID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load active assignment").
			Mark(ierr.ErrDatabase)
	}
	return a, nil
}

func (r *subscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*subscription.Assignment, error) {
	rows, err := r.client.Querier(ctx).QueryContext(ctx, `
		SELECT `+assignmentColumns+`
		FROM plan_assignments
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list assignments").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var assignments []*subscription.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan assignment").
				Mark(ierr.ErrDatabase)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, ierr.WithError(err).Mark(ierr.ErrDatabase)
	}
	return assignments, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (*subscription.Assignment, error) {
	var a subscription.Assignment
	err := row.Scan(
		&a.ID, &a.UserID, &a.PlanSlug, &a.AssignmentStatus, &a.ProviderCustomerID, &a.TierLabel,
		&a.Subscribed, &a.StartsAt, &a.ExpiresAt, &a.CancelAtPeriodEnd,
		&a.TenantID, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.CreatedBy, &a.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
