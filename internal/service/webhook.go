package service

import (
	"context"

	"github.com/samber/lo"

	"github.com/psiflow/psiflow/internal/api/dto"
	"github.com/psiflow/psiflow/internal/domain/webhookevent"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/types"
)

// WebhookService ingests asynchronous lifecycle events from the billing
// provider. The whole handler body is idempotent: the ledger entry is
// appended only after reconciliation succeeds, so any earlier failure makes
// the provider redeliver and the event is processed again in full.
type WebhookService interface {
	// ProcessEvent verifies, deduplicates and applies one provider event.
	ProcessEvent(ctx context.Context, payload []byte, signature string) (*dto.WebhookResponse, error)
}

type webhookService struct {
	ServiceParams
	reconciler ReconciliationService
}

// NewWebhookService creates a new webhook ingestion service
func NewWebhookService(params ServiceParams, reconciler ReconciliationService) WebhookService {
	return &webhookService{ServiceParams: params, reconciler: reconciler}
}

func (s *webhookService) ProcessEvent(ctx context.Context, payload []byte, signature string) (*dto.WebhookResponse, error) {
	event, err := s.BillingClient.VerifyEvent(payload, signature)
	if err != nil {
		// Terminal: the provider will not redeliver after a 4xx.
		return nil, err
	}

	exists, err := s.WebhookEventRepo.Exists(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		s.Logger.Infow("duplicate webhook event, skipping", "event_id", event.ID, "event_type", event.Type)
		return &dto.WebhookResponse{Received: true, Duplicate: true}, nil
	}

	s.Logger.Infow("processing webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
		"category", event.Category.String(),
	)

	var outcome map[string]any
	switch event.Category {
	case types.EventCategorySubscriptionChange:
		outcome, err = s.handleSubscriptionChange(ctx, event.Subscription)
	case types.EventCategoryInvoicePaymentFailed:
		outcome, err = s.handleInvoicePaymentFailed(ctx, event.Invoice)
	case types.EventCategoryInvoicePaymentSucceeded:
		outcome, err = s.handleInvoicePaymentSucceeded(ctx, event.Invoice)
	case types.EventCategoryUnhandled:
		s.Logger.Infow("ignoring unhandled event category", "event_type", event.Type)
		outcome = map[string]any{"skipped": "unhandled event category"}
	}
	if err != nil {
		// Transient: surface as handler failure so the provider retries.
		return nil, err
	}

	ledgerErr := s.WebhookEventRepo.Create(ctx, &webhookevent.ProcessedEvent{
		EventID:   event.ID,
		EventType: event.Type,
		Outcome:   outcome,
	})
	if ledgerErr != nil {
		if ierr.IsAlreadyExists(ledgerErr) {
			// A concurrent delivery won the race after we reconciled;
			// both writes carried the same target state.
			return &dto.WebhookResponse{Received: true, Duplicate: true}, nil
		}
		return nil, ledgerErr
	}

	return &dto.WebhookResponse{Received: true}, nil
}

// handleSubscriptionChange applies subscription created/updated/deleted
// events. The target plan is computed from the event's subscription object;
// the customer is resolved to a local user by contact address.
func (s *webhookService) handleSubscriptionChange(ctx context.Context, sub *billing.Subscription) (map[string]any, error) {
	if sub == nil {
		return nil, ierr.NewError("subscription change event without subscription object").
			Mark(ierr.ErrValidation)
	}

	customer, err := s.BillingClient.GetCustomer(ctx, sub.CustomerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("provider customer not found, skipping event", "customer_id", sub.CustomerID)
			return map[string]any{"skipped": "customer not found"}, nil
		}
		return nil, err
	}

	localUser, err := s.UserRepo.GetByEmail(ctx, customer.Email)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Not our user (e.g. checkout with an unknown address).
			// Acknowledge so the provider stops redelivering.
			s.Logger.Warnw("no local user for billing customer, skipping event",
				"customer_id", sub.CustomerID,
				"email", customer.Email,
			)
			return map[string]any{"skipped": "user not resolved"}, nil
		}
		return nil, err
	}

	params := ReconcileParams{
		UserID:             localUser.ID,
		ProviderCustomerID: lo.ToPtr(sub.CustomerID),
	}

	if sub.Status.Entitled() {
		plan, err := planFromPrice(s.Config.Billing, sub.PriceID)
		if err != nil {
			return nil, err
		}
		params.PlanSlug = plan
		params.Subscribed = true
		params.TierLabel = lo.ToPtr(plan.String())
		params.ExpiresAt = sub.CurrentPeriodEnd
		// Informational until the actual cancellation event arrives.
		params.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	} else {
		params.PlanSlug = types.PlanFree
		params.Subscribed = false
	}

	assignment, err := s.reconciler.Reconcile(ctx, params)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"assignment_id": assignment.ID,
		"plan_slug":     assignment.PlanSlug,
		"subscribed":    assignment.Subscribed,
	}, nil
}

// handleInvoicePaymentFailed downgrades the user once the provider reports
// the final payment attempt, without waiting for a cancellation event.
func (s *webhookService) handleInvoicePaymentFailed(ctx context.Context, inv *billing.Invoice) (map[string]any, error) {
	if inv == nil {
		return nil, ierr.NewError("invoice event without invoice object").
			Mark(ierr.ErrValidation)
	}

	threshold := s.Config.Billing.FinalAttemptThreshold
	if inv.AttemptCount < threshold {
		s.Logger.Infow("payment failed before final attempt, keeping plan",
			"invoice_id", inv.ID,
			"attempt_count", inv.AttemptCount,
			"threshold", threshold,
		)
		return map[string]any{"skipped": "not final attempt", "attempt_count": inv.AttemptCount}, nil
	}

	customer, err := s.BillingClient.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("provider customer not found, skipping downgrade", "customer_id", inv.CustomerID)
			return map[string]any{"skipped": "customer not found"}, nil
		}
		return nil, err
	}

	localUser, err := s.UserRepo.GetByEmail(ctx, customer.Email)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("no local user for billing customer, skipping downgrade", "email", customer.Email)
			return map[string]any{"skipped": "user not resolved"}, nil
		}
		return nil, err
	}

	assignment, err := s.reconciler.Reconcile(ctx, ReconcileParams{
		UserID:             localUser.ID,
		PlanSlug:           types.PlanFree,
		ProviderCustomerID: lo.ToPtr(inv.CustomerID),
		Subscribed:         false,
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("downgraded user after final payment attempt",
		"user_id", localUser.ID,
		"invoice_id", inv.ID,
		"attempt_count", inv.AttemptCount,
	)

	return map[string]any{
		"assignment_id": assignment.ID,
		"plan_slug":     assignment.PlanSlug,
		"downgraded":    true,
	}, nil
}

// handleInvoicePaymentSucceeded re-fetches the paid subscription and re-runs
// the subscription-change path, healing any missed prior event.
func (s *webhookService) handleInvoicePaymentSucceeded(ctx context.Context, inv *billing.Invoice) (map[string]any, error) {
	if inv == nil {
		return nil, ierr.NewError("invoice event without invoice object").
			Mark(ierr.ErrValidation)
	}
	if inv.SubscriptionID == "" {
		s.Logger.Infow("paid invoice has no subscription, skipping", "invoice_id", inv.ID)
		return map[string]any{"skipped": "no subscription on invoice"}, nil
	}

	sub, err := s.BillingClient.GetSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return s.handleSubscriptionChange(ctx, sub)
}
