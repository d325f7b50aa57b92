package testutil

import (
	"context"

	"github.com/stretchr/testify/suite"

	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/types"
)

// Stores bundles the in-memory repositories handed to services under test.
type Stores struct {
	SubscriptionRepo *InMemorySubscriptionStore
	OverrideRepo     *InMemoryOverrideStore
	WebhookEventRepo *InMemoryWebhookEventStore
	UserRepo         *InMemoryUserStore
}

// BaseServiceTestSuite provides common setup for service tests: fresh stores,
// a fake billing client and a context carrying a test identity.
type BaseServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	cfg     *config.Configuration
	log     *logger.Logger
	stores  Stores
	billing *FakeBillingClient
}

// SetupTest initializes fresh state before each test.
func (s *BaseServiceTestSuite) SetupTest() {
	s.ctx = types.WithUserID(context.Background(), "user_test")
	s.cfg = config.GetDefaultConfig()
	s.log = logger.GetLogger()
	s.stores = Stores{
		SubscriptionRepo: NewInMemorySubscriptionStore(),
		OverrideRepo:     NewInMemoryOverrideStore(),
		WebhookEventRepo: NewInMemoryWebhookEventStore(),
		UserRepo:         NewInMemoryUserStore(),
	}
	s.billing = NewFakeBillingClient()
}

// TearDownTest clears state after each test.
func (s *BaseServiceTestSuite) TearDownTest() {
	s.ClearStores()
}

// ClearStores resets every store.
func (s *BaseServiceTestSuite) ClearStores() {
	s.stores.SubscriptionRepo.Clear()
	s.stores.OverrideRepo.Clear()
	s.stores.WebhookEventRepo.Clear()
	s.stores.UserRepo.Clear()
}

// GetContext returns the test context.
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetAdminContext returns a context whose caller carries the admin role.
func (s *BaseServiceTestSuite) GetAdminContext() context.Context {
	ctx := types.WithUserID(context.Background(), "user_admin")
	return types.WithUserRole(ctx, types.UserRoleAdmin)
}

// GetConfig returns the test configuration.
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.cfg
}

// GetLogger returns the test logger.
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.log
}

// GetStores returns the in-memory stores.
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetBilling returns the fake billing client.
func (s *BaseServiceTestSuite) GetBilling() *FakeBillingClient {
	return s.billing
}
