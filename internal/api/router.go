package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/psiflow/psiflow/internal/api/v1"
	"github.com/psiflow/psiflow/internal/auth"
	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/rest/middleware"
)

// Handlers groups every HTTP handler wired into the router.
type Handlers struct {
	Webhook      *v1.WebhookHandler
	Subscription *v1.SubscriptionHandler
	Override     *v1.OverrideHandler
}

// NewRouter builds the gin engine with the full middleware chain. The webhook
// route authenticates by signature, not bearer token, so it sits outside the
// private group.
func NewRouter(handlers Handlers, cfg *config.Configuration, authService auth.Service, log *logger.Logger) *gin.Engine {
	if cfg.Deployment.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.SentryMiddleware(cfg),
		middleware.RequestIDMiddleware,
		middleware.LoggingMiddleware(log),
		middleware.ErrorHandler(log),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	public := router.Group("/v1")
	public.POST("/webhooks/stripe", handlers.Webhook.HandleStripeWebhook)

	private := router.Group("/v1")
	private.Use(
		middleware.AuthenticateMiddleware(authService, log),
		middleware.SentryUserContextMiddleware,
	)

	private.POST("/subscriptions/status", handlers.Subscription.GetStatus)
	private.POST("/subscriptions/sync", handlers.Subscription.SyncSubscription)
	private.GET("/subscriptions/history", handlers.Subscription.GetHistory)

	admin := private.Group("/admin")
	admin.Use(middleware.AdminOnlyMiddleware)
	admin.POST("/overrides", handlers.Override.GrantOverride)
	admin.POST("/overrides/:id/revoke", handlers.Override.RevokeOverride)
	admin.GET("/overrides/users/:user_id", handlers.Override.GetActiveOverride)

	return router
}
