package service

import (
	"context"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"

	"github.com/psiflow/psiflow/internal/api/dto"
	"github.com/psiflow/psiflow/internal/domain/subscription"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/types"
)

// SyncService reconciles a user's plan on demand, independent of webhook
// delivery. It always recomputes from current provider state, so running it
// any number of times converges to the same single active assignment.
type SyncService interface {
	// CheckStatus reconciles the calling user and returns their status.
	CheckStatus(ctx context.Context) (*dto.SubscriptionStatusResponse, error)

	// SyncUser reconciles the given user (self-service repair, or an
	// admin repairing someone else).
	SyncUser(ctx context.Context, userID string) (*dto.SyncSubscriptionResponse, error)

	// History returns the user's full assignment history.
	History(ctx context.Context, userID string) (*dto.AssignmentHistoryResponse, error)
}

type syncService struct {
	ServiceParams
	reconciler ReconciliationService
}

// NewSyncService creates a new pull-sync service
func NewSyncService(params ServiceParams, reconciler ReconciliationService) SyncService {
	return &syncService{ServiceParams: params, reconciler: reconciler}
}

func (s *syncService) CheckStatus(ctx context.Context) (*dto.SubscriptionStatusResponse, error) {
	userID := types.GetUserID(ctx)
	if userID == "" {
		return nil, ierr.NewError("caller identity missing").
			Mark(ierr.ErrPermissionDenied)
	}

	assignment, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSubscriptionStatusResponse(assignment), nil
}

func (s *syncService) SyncUser(ctx context.Context, userID string) (*dto.SyncSubscriptionResponse, error) {
	if userID == "" {
		return nil, ierr.NewError("user_id is required").Mark(ierr.ErrValidation)
	}
	if userID != types.GetUserID(ctx) && !types.IsAdmin(ctx) {
		return nil, ierr.NewError("cannot sync another user's subscription").
			Mark(ierr.ErrPermissionDenied)
	}

	assignment, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return dto.NewSyncSubscriptionResponse(assignment), nil
}

func (s *syncService) History(ctx context.Context, userID string) (*dto.AssignmentHistoryResponse, error) {
	if userID != types.GetUserID(ctx) && !types.IsAdmin(ctx) {
		return nil, ierr.NewError("cannot read another user's history").
			Mark(ierr.ErrPermissionDenied)
	}

	items, err := s.SubscriptionRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.AssignmentHistoryResponse{Items: items, Total: len(items)}, nil
}

// resolve computes and persists the correct assignment for the user from
// the current sources of truth: courtesy override first, then the billing
// provider, then the free fallback.
func (s *syncService) resolve(ctx context.Context, userID string) (*subscription.Assignment, error) {
	now := time.Now().UTC()

	// An active, unexpired courtesy override wins unconditionally and
	// skips all provider interaction.
	ovr, err := s.OverrideRepo.GetActiveByUser(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if ovr.Effective(now) {
		s.Logger.Infow("courtesy override takes precedence",
			"user_id", userID,
			"plan_slug", ovr.PlanSlug,
			"expires_at", ovr.ExpiresAt,
		)
		return s.reconciler.Reconcile(ctx, ReconcileParams{
			UserID:     userID,
			PlanSlug:   ovr.PlanSlug,
			Subscribed: true,
			TierLabel:  lo.ToPtr(types.TierLabelCourtesy),
			ExpiresAt:  ovr.ExpiresAt,
		})
	}

	localUser, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	customer, err := s.BillingClient.FindCustomerByEmail(ctx, localUser.Email)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Never checked out: nothing to reconcile against.
			return s.reconciler.Reconcile(ctx, ReconcileParams{
				UserID:   userID,
				PlanSlug: types.PlanFree,
			})
		}
		return nil, err
	}

	subs, err := s.BillingClient.ListActiveSubscriptions(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	if len(subs) == 0 {
		// Keep the customer reference so future lookups are direct.
		return s.reconciler.Reconcile(ctx, ReconcileParams{
			UserID:             userID,
			PlanSlug:           types.PlanFree,
			ProviderCustomerID: lo.ToPtr(customer.ID),
		})
	}

	authoritative := subs[0]
	if len(subs) > 1 {
		authoritative = s.remediateDuplicates(ctx, subs)
	}

	plan, err := planFromPrice(s.Config.Billing, authoritative.PriceID)
	if err != nil {
		return nil, err
	}

	return s.reconciler.Reconcile(ctx, ReconcileParams{
		UserID:             userID,
		PlanSlug:           plan,
		ProviderCustomerID: lo.ToPtr(customer.ID),
		TierLabel:          lo.ToPtr(plan.String()),
		Subscribed:         true,
		ExpiresAt:          authoritative.CurrentPeriodEnd,
		CancelAtPeriodEnd:  authoritative.CancelAtPeriodEnd,
	})
}

// remediateDuplicates keeps the most recently created subscription as
// authoritative and cancels the older ones. Cancellation is best effort: a
// failure is logged and does not block reconciling to the retained
// subscription.
func (s *syncService) remediateDuplicates(ctx context.Context, subs []*billing.Subscription) *billing.Subscription {
	sorted := make([]*billing.Subscription, len(subs))
	copy(sorted, subs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	authoritative := sorted[0]
	s.Logger.Warnw("duplicate active subscriptions detected",
		"customer_id", authoritative.CustomerID,
		"count", len(sorted),
		"retained", authoritative.ID,
	)

	for _, stale := range sorted[1:] {
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		err := backoff.Retry(func() error {
			return s.BillingClient.CancelSubscription(ctx, stale.ID)
		}, bo)
		if err != nil {
			s.Logger.Errorw("failed to cancel stale duplicate subscription",
				"subscription_id", stale.ID,
				"error", err,
			)
			continue
		}
		s.Logger.Infow("cancelled stale duplicate subscription", "subscription_id", stale.ID)
	}

	return authoritative
}
