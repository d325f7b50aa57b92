package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/psiflow/psiflow/internal/domain/user"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/testutil"
	"github.com/psiflow/psiflow/internal/types"
)

type WebhookServiceTestSuite struct {
	testutil.BaseServiceTestSuite
	webhookService WebhookService
	testData       struct {
		user     *user.User
		customer *billing.Customer
		now      time.Time
	}
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceTestSuite))
}

func (s *WebhookServiceTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	params := ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		SubscriptionRepo: s.GetStores().SubscriptionRepo,
		OverrideRepo:     s.GetStores().OverrideRepo,
		WebhookEventRepo: s.GetStores().WebhookEventRepo,
		UserRepo:         s.GetStores().UserRepo,
		BillingClient:    s.GetBilling(),
	}
	s.webhookService = NewWebhookService(params, NewReconciliationService(params))

	s.testData.now = time.Now().UTC()
	s.testData.user = &user.User{ID: "user_1", Email: "ana@example.com"}
	s.NoError(s.GetStores().UserRepo.Add(s.GetContext(), s.testData.user))

	s.testData.customer = &billing.Customer{ID: "cus_1", Email: "ana@example.com"}
	s.GetBilling().AddCustomer(s.testData.customer)
}

func (s *WebhookServiceTestSuite) activeSubscriptionEvent(eventID string) *billing.Event {
	periodEnd := s.testData.now.Add(30 * 24 * time.Hour)
	return &billing.Event{
		ID:       eventID,
		Type:     types.WebhookEventSubscriptionUpdated,
		Category: types.EventCategorySubscriptionChange,
		Subscription: &billing.Subscription{
			ID:               "sub_1",
			CustomerID:       s.testData.customer.ID,
			Status:           types.ProviderSubscriptionActive,
			PriceID:          "price_gestao_monthly",
			CurrentPeriodEnd: lo.ToPtr(periodEnd),
			CreatedAt:        s.testData.now,
		},
	}
}

func (s *WebhookServiceTestSuite) TestSubscriptionChangeGrantsPlan() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))

	resp, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)
	s.True(resp.Received)
	s.False(resp.Duplicate)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(types.PlanGestao, assignment.PlanSlug)
	s.True(assignment.Subscribed)
	s.NotNil(assignment.ExpiresAt)
}

func (s *WebhookServiceTestSuite) TestReplayedEventIsNoOp() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))

	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)

	resp, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)
	s.True(resp.Duplicate)

	// The replay must not write another assignment row.
	history, err := s.GetStores().SubscriptionRepo.ListByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Len(history, 1)
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())
}

func (s *WebhookServiceTestSuite) TestInvalidSignatureRejected() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))

	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "invalid")
	s.Error(err)
	s.True(ierr.IsSignature(err))
	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
}

func (s *WebhookServiceTestSuite) TestCancelledSubscriptionDowngradesToFree() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))
	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)

	cancelled := s.activeSubscriptionEvent("evt_2")
	cancelled.Type = types.WebhookEventSubscriptionDeleted
	cancelled.Subscription.Status = types.ProviderSubscriptionCanceled
	s.GetBilling().AddEvent("payload_2", cancelled)

	_, err = s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_2"), "sig")
	s.NoError(err)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(types.PlanFree, assignment.PlanSlug)
	s.False(assignment.Subscribed)
}

func (s *WebhookServiceTestSuite) TestUnmappedPriceIsHardError() {
	event := s.activeSubscriptionEvent("evt_1")
	event.Subscription.PriceID = "price_unknown"
	s.GetBilling().AddEvent("payload_1", event)

	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))

	// Not acknowledged: the provider should redeliver after the mapping is
	// fixed and the event must then apply.
	s.Equal(0, s.GetStores().WebhookEventRepo.Count())
}

func (s *WebhookServiceTestSuite) TestUnknownCustomerEmailIsAcknowledged() {
	event := s.activeSubscriptionEvent("evt_1")
	event.Subscription.CustomerID = "cus_other"
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_other", Email: "stranger@example.com"})
	s.GetBilling().AddEvent("payload_1", event)

	resp, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)
	s.True(resp.Received)

	// Acknowledged and recorded, but no assignment written.
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())
	_, err = s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.True(ierr.IsNotFound(err))
}

func (s *WebhookServiceTestSuite) TestPaymentFailedBeforeThresholdKeepsPlan() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))
	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)

	s.GetBilling().AddEvent("payload_2", &billing.Event{
		ID:       "evt_2",
		Type:     types.WebhookEventInvoiceFailed,
		Category: types.EventCategoryInvoicePaymentFailed,
		Invoice: &billing.Invoice{
			ID:           "in_1",
			CustomerID:   s.testData.customer.ID,
			AttemptCount: 1,
		},
	})

	_, err = s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_2"), "sig")
	s.NoError(err)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(types.PlanGestao, assignment.PlanSlug)
}

func (s *WebhookServiceTestSuite) TestFinalPaymentAttemptDowngrades() {
	s.GetBilling().AddEvent("payload_1", s.activeSubscriptionEvent("evt_1"))
	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)

	s.GetBilling().AddEvent("payload_2", &billing.Event{
		ID:       "evt_2",
		Type:     types.WebhookEventInvoiceFailed,
		Category: types.EventCategoryInvoicePaymentFailed,
		Invoice: &billing.Invoice{
			ID:           "in_1",
			CustomerID:   s.testData.customer.ID,
			AttemptCount: s.GetConfig().Billing.FinalAttemptThreshold,
		},
	})

	_, err = s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_2"), "sig")
	s.NoError(err)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(types.PlanFree, assignment.PlanSlug)
	s.False(assignment.Subscribed)
}

func (s *WebhookServiceTestSuite) TestPaymentSucceededHealsMissedChange() {
	// No prior subscription event was seen; the paid invoice alone must
	// bring the user onto their plan.
	s.GetBilling().AddSubscription(&billing.Subscription{
		ID:         "sub_1",
		CustomerID: s.testData.customer.ID,
		Status:     types.ProviderSubscriptionActive,
		PriceID:    "price_psi_regular_monthly",
		CreatedAt:  s.testData.now,
	})
	s.GetBilling().AddEvent("payload_1", &billing.Event{
		ID:       "evt_1",
		Type:     types.WebhookEventInvoiceSucceeded,
		Category: types.EventCategoryInvoicePaymentSucceeded,
		Invoice: &billing.Invoice{
			ID:             "in_1",
			CustomerID:     s.testData.customer.ID,
			SubscriptionID: "sub_1",
		},
	})

	_, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_1")
	s.NoError(err)
	s.Equal(types.PlanPsiRegular, assignment.PlanSlug)
}

func (s *WebhookServiceTestSuite) TestUnhandledEventIsAcknowledged() {
	s.GetBilling().AddEvent("payload_1", &billing.Event{
		ID:       "evt_1",
		Type:     "charge.refunded",
		Category: types.EventCategoryUnhandled,
	})

	resp, err := s.webhookService.ProcessEvent(s.GetContext(), []byte("payload_1"), "sig")
	s.NoError(err)
	s.True(resp.Received)
	s.Equal(1, s.GetStores().WebhookEventRepo.Count())
}
