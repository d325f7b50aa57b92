package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/psiflow/psiflow/internal/domain/override"
	"github.com/psiflow/psiflow/internal/domain/user"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/testutil"
	"github.com/psiflow/psiflow/internal/types"
)

type SyncServiceTestSuite struct {
	testutil.BaseServiceTestSuite
	syncService SyncService
	testData    struct {
		user *user.User
		now  time.Time
	}
}

func TestSyncService(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) SetupTest() {
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
	s.syncService = NewSyncService(params, NewReconciliationService(params))

	s.testData.now = time.Now().UTC()
	s.testData.user = &user.User{ID: "user_test", Email: "ana@example.com"}
	s.NoError(s.GetStores().UserRepo.Add(s.GetContext(), s.testData.user))
}

func (s *SyncServiceTestSuite) addSubscription(id, priceID string, createdAt time.Time) {
	s.GetBilling().AddSubscription(&billing.Subscription{
		ID:               id,
		CustomerID:       "cus_1",
		Status:           types.ProviderSubscriptionActive,
		PriceID:          priceID,
		CurrentPeriodEnd: lo.ToPtr(createdAt.Add(30 * 24 * time.Hour)),
		CreatedAt:        createdAt,
	})
}

func (s *SyncServiceTestSuite) TestNoProviderCustomerFallsBackToFree() {
	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanFree), resp.Plan)
	s.False(resp.IsCourtesy)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(types.PlanFree, assignment.PlanSlug)
	s.False(assignment.Subscribed)
}

func (s *SyncServiceTestSuite) TestCustomerWithoutSubscriptionsKeepsReference() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanFree), resp.Plan)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.NotNil(assignment.ProviderCustomerID)
	s.Equal("cus_1", *assignment.ProviderCustomerID)
}

func (s *SyncServiceTestSuite) TestSingleSubscriptionGrantsPlan() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_1", "price_gestao_monthly", s.testData.now)

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanGestao), resp.Plan)
	s.NotNil(resp.ExpiresAt)

	assignment, err := s.GetStores().SubscriptionRepo.GetActiveByUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.True(assignment.Subscribed)
	s.Equal(types.PlanGestao, assignment.PlanSlug)
}

func (s *SyncServiceTestSuite) TestDuplicateSubscriptionsKeepNewestCancelRest() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_old", "price_gestao_monthly", s.testData.now.Add(-48*time.Hour))
	s.addSubscription("sub_mid", "price_gestao_monthly", s.testData.now.Add(-24*time.Hour))
	s.addSubscription("sub_new", "price_psi_regular_monthly", s.testData.now)

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanPsiRegular), resp.Plan)

	cancelled := s.GetBilling().Cancelled()
	s.ElementsMatch([]string{"sub_old", "sub_mid"}, cancelled)
	s.NotContains(cancelled, "sub_new")
}

func (s *SyncServiceTestSuite) TestDuplicateCancellationFailureIsNonFatal() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_old", "price_gestao_monthly", s.testData.now.Add(-24*time.Hour))
	s.addSubscription("sub_new", "price_gestao_monthly", s.testData.now)
	s.GetBilling().CancelErr = ierr.NewError("provider unavailable").Mark(ierr.ErrHTTPClient)

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanGestao), resp.Plan)
}

func (s *SyncServiceTestSuite) TestCourtesyOverrideWinsOverProvider() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_1", "price_gestao_monthly", s.testData.now)

	s.NoError(s.GetStores().OverrideRepo.Create(s.GetContext(), &override.Override{
		UserID:    "user_test",
		PlanSlug:  types.PlanPsiRegular,
		Reason:    "beta tester courtesy grant",
		GrantedBy: "user_admin",
	}))

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanPsiRegular), resp.Plan)
	s.True(resp.IsCourtesy)

	// Provider untouched while the override holds.
	s.Equal(0, s.GetBilling().ListCalls)
}

func (s *SyncServiceTestSuite) TestExpiredOverrideFallsThroughToProvider() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_1", "price_gestao_monthly", s.testData.now)

	s.NoError(s.GetStores().OverrideRepo.Create(s.GetContext(), &override.Override{
		UserID:    "user_test",
		PlanSlug:  types.PlanPsiRegular,
		ExpiresAt: lo.ToPtr(s.testData.now.Add(time.Hour)),
		Reason:    "temporary courtesy grant",
		GrantedBy: "user_admin",
	}))

	// Simulate expiry by rewriting the stored override.
	ovr, err := s.GetStores().OverrideRepo.GetActiveByUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.GetStores().OverrideRepo.Clear()
	ovr.ExpiresAt = lo.ToPtr(s.testData.now.Add(-time.Hour))
	ovr.ID = ""
	s.NoError(s.GetStores().OverrideRepo.Create(s.GetContext(), ovr))

	resp, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(string(types.PlanGestao), resp.Plan)
	s.False(resp.IsCourtesy)
	s.Equal(1, s.GetBilling().ListCalls)
}

func (s *SyncServiceTestSuite) TestSyncingAnotherUserRequiresAdmin() {
	_, err := s.syncService.SyncUser(s.GetContext(), "user_other")
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))

	other := &user.User{ID: "user_other", Email: "other@example.com"}
	s.NoError(s.GetStores().UserRepo.Add(s.GetContext(), other))

	_, err = s.syncService.SyncUser(s.GetAdminContext(), "user_other")
	s.NoError(err)
}

func (s *SyncServiceTestSuite) TestCheckStatusReturnsReconciledState() {
	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_1", "price_gestao_monthly", s.testData.now)

	resp, err := s.syncService.CheckStatus(s.GetContext())
	s.NoError(err)
	s.True(resp.Subscribed)
	s.Equal(string(types.PlanGestao), resp.PlanSlug)
	s.NotNil(resp.SubscriptionData)
}

func (s *SyncServiceTestSuite) TestHistoryNewestFirst() {
	_, err := s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)

	s.GetBilling().AddCustomer(&billing.Customer{ID: "cus_1", Email: "ana@example.com"})
	s.addSubscription("sub_1", "price_gestao_monthly", s.testData.now)
	_, err = s.syncService.SyncUser(s.GetContext(), "user_test")
	s.NoError(err)

	history, err := s.syncService.History(s.GetContext(), "user_test")
	s.NoError(err)
	s.Equal(2, history.Total)
	s.Equal(types.PlanGestao, history.Items[0].PlanSlug)
}
