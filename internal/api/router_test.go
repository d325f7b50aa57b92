package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	v1 "github.com/psiflow/psiflow/internal/api/v1"
	"github.com/psiflow/psiflow/internal/auth"
	"github.com/psiflow/psiflow/internal/coalesce"
	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/domain/user"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/service"
	"github.com/psiflow/psiflow/internal/testutil"
	"github.com/psiflow/psiflow/internal/types"
)

func newTestRouter(t *testing.T) (*gin.Engine, auth.Service, testutil.Stores) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.GetDefaultConfig()
	cfg.Auth.Secret = "router-test-secret"
	log := logger.GetLogger()

	stores := testutil.Stores{
		SubscriptionRepo: testutil.NewInMemorySubscriptionStore(),
		OverrideRepo:     testutil.NewInMemoryOverrideStore(),
		WebhookEventRepo: testutil.NewInMemoryWebhookEventStore(),
		UserRepo:         testutil.NewInMemoryUserStore(),
	}

	params := service.ServiceParams{
		Logger:           log,
		Config:           cfg,
		SubscriptionRepo: stores.SubscriptionRepo,
		OverrideRepo:     stores.OverrideRepo,
		WebhookEventRepo: stores.WebhookEventRepo,
		UserRepo:         stores.UserRepo,
		BillingClient:    testutil.NewFakeBillingClient(),
	}
	reconciler := service.NewReconciliationService(params)
	coalescer := coalesce.NewManager(cfg.Coalesce, testutil.NewInMemoryCache(), nil, log)
	authService := auth.NewService(cfg)

	handlers := Handlers{
		Webhook:      v1.NewWebhookHandler(service.NewWebhookService(params, reconciler), log),
		Subscription: v1.NewSubscriptionHandler(service.NewSyncService(params, reconciler), coalescer, log),
		Override:     v1.NewOverrideHandler(service.NewOverrideService(params), coalescer, log),
	}

	return NewRouter(handlers, cfg, authService, log), authService, stores
}

// A status check reconciles the caller's plan, so it must only be reachable
// via POST where no intermediary will replay it.
func TestStatusCheckRegisteredAsPost(t *testing.T) {
	router, authService, stores := newTestRouter(t)

	ctx := types.WithUserID(context.Background(), "user_test")
	require.NoError(t, stores.UserRepo.Add(ctx, &user.User{
		ID:    "user_1",
		Email: "ana@example.com",
	}))

	token, err := authService.GenerateToken("user_1", types.UserRoleMember)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/v1/subscriptions/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusCheckRequiresAuthentication(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
