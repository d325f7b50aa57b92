package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/psiflow/psiflow/internal/domain/user"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/postgres"
)

type userRepository struct {
	client *postgres.Client
	log    *logger.Logger
}

// NewUserRepository returns the Postgres-backed user reader.
func NewUserRepository(client *postgres.Client, log *logger.Logger) user.Repository {
	return &userRepository{client: client, log: log}
}

func (r *userRepository) Get(ctx context.Context, id string) (*user.User, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, email, tenant_id, status, created_at, updated_at, created_by, updated_by
		FROM users WHERE id = $1
	`, id)
	return scanUser(row, map[string]any{"id": id})
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	row := r.client.Querier(ctx).QueryRowContext(ctx, `
		SELECT id, email, tenant_id, status, created_at, updated_at, created_by, updated_by
		FROM users WHERE lower(email) = $1
	`, strings.ToLower(email))
	return scanUser(row, map[string]any{"email": email})
}

func scanUser(row rowScanner, details map[string]any) (*user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID, &u.Email,
		&u.TenantID, &u.Status, &u.CreatedAt, &u.UpdatedAt, &u.CreatedBy, &u.UpdatedBy,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ierr.NewError("user not found").
				WithReportableDetails(details).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to load user").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}
