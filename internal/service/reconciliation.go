package service

import (
	"context"
	"time"

	"github.com/psiflow/psiflow/internal/domain/subscription"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/types"
)

// ReconcileParams is the resolved target state for a user's plan assignment.
type ReconcileParams struct {
	UserID             string
	PlanSlug           types.PlanSlug
	ProviderCustomerID *string
	TierLabel          *string
	Subscribed         bool
	ExpiresAt          *time.Time
	CancelAtPeriodEnd  bool
}

// ReconciliationService is the single write path for subscription state.
// Webhook ingestion, pull sync and overrides all converge here instead of
// mutating storage directly.
type ReconciliationService interface {
	// Reconcile atomically supersedes the user's current assignment with
	// the given target state and returns the new active assignment.
	Reconcile(ctx context.Context, params ReconcileParams) (*subscription.Assignment, error)
}

type reconciliationService struct {
	ServiceParams
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(params ServiceParams) ReconciliationService {
	return &reconciliationService{ServiceParams: params}
}

func (s *reconciliationService) Reconcile(ctx context.Context, params ReconcileParams) (*subscription.Assignment, error) {
	if params.UserID == "" {
		return nil, ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}
	if !params.PlanSlug.Valid() {
		return nil, ierr.NewErrorf("invalid plan slug %q", params.PlanSlug).Mark(ierr.ErrValidation)
	}

	assignment := &subscription.Assignment{
		UserID:             params.UserID,
		PlanSlug:           params.PlanSlug,
		ProviderCustomerID: params.ProviderCustomerID,
		TierLabel:          params.TierLabel,
		Subscribed:         params.Subscribed,
		StartsAt:           time.Now().UTC(),
		ExpiresAt:          params.ExpiresAt,
		CancelAtPeriodEnd:  params.CancelAtPeriodEnd,
	}

	result, err := s.SubscriptionRepo.UpsertActive(ctx, assignment)
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("reconciled plan assignment",
		"user_id", params.UserID,
		"plan_slug", params.PlanSlug,
		"subscribed", params.Subscribed,
		"expires_at", params.ExpiresAt,
		"cancel_at_period_end", params.CancelAtPeriodEnd,
	)

	return result, nil
}
