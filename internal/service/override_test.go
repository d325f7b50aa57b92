package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/psiflow/psiflow/internal/api/dto"
	"github.com/psiflow/psiflow/internal/domain/user"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/testutil"
	"github.com/psiflow/psiflow/internal/types"
)

type OverrideServiceTestSuite struct {
	testutil.BaseServiceTestSuite
	overrideService OverrideService
}

func TestOverrideService(t *testing.T) {
	suite.Run(t, new(OverrideServiceTestSuite))
}

func (s *OverrideServiceTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.overrideService = NewOverrideService(ServiceParams{
		Logger:           s.GetLogger(),
		Config:           s.GetConfig(),
		SubscriptionRepo: s.GetStores().SubscriptionRepo,
		OverrideRepo:     s.GetStores().OverrideRepo,
		WebhookEventRepo: s.GetStores().WebhookEventRepo,
		UserRepo:         s.GetStores().UserRepo,
		BillingClient:    s.GetBilling(),
	})

	s.NoError(s.GetStores().UserRepo.Add(s.GetContext(), &user.User{
		ID:    "user_1",
		Email: "ana@example.com",
	}))
}

func (s *OverrideServiceTestSuite) grantRequest() *dto.GrantOverrideRequest {
	return &dto.GrantOverrideRequest{
		UserID:   "user_1",
		PlanSlug: string(types.PlanPsiRegular),
		Reason:   "beta tester courtesy grant",
	}
}

func (s *OverrideServiceTestSuite) TestGrantCreatesActiveOverride() {
	resp, err := s.overrideService.Grant(s.GetAdminContext(), s.grantRequest())
	s.NoError(err)
	s.True(resp.Active)
	s.True(resp.Effective)
	s.Equal("user_admin", resp.GrantedBy)
	s.Equal(string(types.PlanPsiRegular), resp.PlanSlug)
}

func (s *OverrideServiceTestSuite) TestGrantRequiresAdmin() {
	_, err := s.overrideService.Grant(s.GetContext(), s.grantRequest())
	s.Error(err)
	s.True(ierr.IsPermissionDenied(err))
}

func (s *OverrideServiceTestSuite) TestGrantRejectsFreePlan() {
	req := s.grantRequest()
	req.PlanSlug = string(types.PlanFree)

	_, err := s.overrideService.Grant(s.GetAdminContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *OverrideServiceTestSuite) TestGrantRejectsPastExpiry() {
	req := s.grantRequest()
	req.ExpiresAt = lo.ToPtr(time.Now().UTC().Add(-time.Hour))

	_, err := s.overrideService.Grant(s.GetAdminContext(), req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *OverrideServiceTestSuite) TestGrantRejectsUnknownUser() {
	req := s.grantRequest()
	req.UserID = "user_missing"

	_, err := s.overrideService.Grant(s.GetAdminContext(), req)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *OverrideServiceTestSuite) TestSecondActiveGrantConflicts() {
	_, err := s.overrideService.Grant(s.GetAdminContext(), s.grantRequest())
	s.NoError(err)

	req := s.grantRequest()
	req.PlanSlug = string(types.PlanGestao)
	_, err = s.overrideService.Grant(s.GetAdminContext(), req)
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *OverrideServiceTestSuite) TestRevokeThenRegrant() {
	granted, err := s.overrideService.Grant(s.GetAdminContext(), s.grantRequest())
	s.NoError(err)

	revoked, err := s.overrideService.Revoke(s.GetAdminContext(), granted.ID)
	s.NoError(err)
	s.False(revoked.Active)

	// Revoking again is an invalid operation, not a silent no-op.
	_, err = s.overrideService.Revoke(s.GetAdminContext(), granted.ID)
	s.Error(err)
	s.True(ierr.Is(err, ierr.ErrInvalidOperation))

	_, err = s.overrideService.Grant(s.GetAdminContext(), s.grantRequest())
	s.NoError(err)
}

func (s *OverrideServiceTestSuite) TestGetActiveForUser() {
	_, err := s.overrideService.GetActiveForUser(s.GetAdminContext(), "user_1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	_, err = s.overrideService.Grant(s.GetAdminContext(), s.grantRequest())
	s.NoError(err)

	resp, err := s.overrideService.GetActiveForUser(s.GetAdminContext(), "user_1")
	s.NoError(err)
	s.Equal("user_1", resp.UserID)
	s.True(resp.Effective)
}
