package service

import (
	"context"
	"time"

	"github.com/psiflow/psiflow/internal/api/dto"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// OverrideService manages courtesy plan grants. Grants and revocations only
// touch the override record; the assignment itself changes the next time the
// user's state is resolved, which keeps the reconciler the single write path.
type OverrideService interface {
	// Grant creates an active override for a user. Admin only.
	Grant(ctx context.Context, req *dto.GrantOverrideRequest) (*dto.OverrideResponse, error)

	// Revoke deactivates an override by ID. Admin only.
	Revoke(ctx context.Context, id string) (*dto.OverrideResponse, error)

	// GetActiveForUser returns the user's active override. Admin only.
	GetActiveForUser(ctx context.Context, userID string) (*dto.OverrideResponse, error)
}

type overrideService struct {
	ServiceParams
}

// NewOverrideService creates a new override service
func NewOverrideService(params ServiceParams) OverrideService {
	return &overrideService{ServiceParams: params}
}

func (s *overrideService) Grant(ctx context.Context, req *dto.GrantOverrideRequest) (*dto.OverrideResponse, error) {
	if !types.IsAdmin(ctx) {
		return nil, ierr.NewError("courtesy overrides require an admin role").
			Mark(ierr.ErrPermissionDenied)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.UserRepo.Get(ctx, req.UserID); err != nil {
		return nil, err
	}

	ovr := req.ToOverride(types.GetUserID(ctx))
	if err := s.OverrideRepo.Create(ctx, ovr); err != nil {
		if ierr.IsAlreadyExists(err) {
			existing, lookupErr := s.OverrideRepo.GetActiveByUser(ctx, req.UserID)
			if lookupErr == nil && existing != nil {
				return nil, ierr.WithError(err).
					WithHint("Revoke the existing override before granting a new one").
					WithReportableDetails(map[string]any{
						"existing_override_id": existing.ID,
						"existing_plan_slug":   existing.PlanSlug,
					}).
					Mark(ierr.ErrAlreadyExists)
			}
		}
		return nil, err
	}

	s.Logger.Infow("granted courtesy override",
		"override_id", ovr.ID,
		"user_id", ovr.UserID,
		"plan_slug", ovr.PlanSlug,
		"granted_by", ovr.GrantedBy,
		"expires_at", ovr.ExpiresAt,
	)

	return dto.NewOverrideResponse(ovr), nil
}

func (s *overrideService) Revoke(ctx context.Context, id string) (*dto.OverrideResponse, error) {
	if !types.IsAdmin(ctx) {
		return nil, ierr.NewError("courtesy overrides require an admin role").
			Mark(ierr.ErrPermissionDenied)
	}
	if id == "" {
		return nil, ierr.NewError("override id is required").Mark(ierr.ErrValidation)
	}

	ovr, err := s.OverrideRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ovr.Active {
		return nil, ierr.NewErrorf("override %s is already revoked", id).
			Mark(ierr.ErrInvalidOperation)
	}

	if err := s.OverrideRepo.Deactivate(ctx, id); err != nil {
		return nil, err
	}
	ovr.Active = false

	s.Logger.Infow("revoked courtesy override",
		"override_id", id,
		"user_id", ovr.UserID,
		"revoked_by", types.GetUserID(ctx),
	)

	return dto.NewOverrideResponse(ovr), nil
}

func (s *overrideService) GetActiveForUser(ctx context.Context, userID string) (*dto.OverrideResponse, error) {
	if !types.IsAdmin(ctx) {
		return nil, ierr.NewError("courtesy overrides require an admin role").
			Mark(ierr.ErrPermissionDenied)
	}
	if userID == "" {
		return nil, ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}

	ovr, err := s.OverrideRepo.GetActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ovr.Effective(time.Now().UTC()) {
		s.Logger.Debugw("active override past expiry", "override_id", ovr.ID, "user_id", userID)
	}

	return dto.NewOverrideResponse(ovr), nil
}
