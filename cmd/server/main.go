package main

import (
	"context"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"

	"github.com/psiflow/psiflow/internal/api"
	v1 "github.com/psiflow/psiflow/internal/api/v1"
	"github.com/psiflow/psiflow/internal/auth"
	"github.com/psiflow/psiflow/internal/cache"
	"github.com/psiflow/psiflow/internal/coalesce"
	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/domain/override"
	"github.com/psiflow/psiflow/internal/domain/subscription"
	"github.com/psiflow/psiflow/internal/domain/user"
	"github.com/psiflow/psiflow/internal/domain/webhookevent"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/integration/billing/stripe"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/postgres"
	"github.com/psiflow/psiflow/internal/redis"
	repo "github.com/psiflow/psiflow/internal/repository/postgres"
	"github.com/psiflow/psiflow/internal/service"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			postgres.NewClient,
			newRedisClient,
			newCoalescer,
			auth.NewService,
			stripe.NewClient,
			repo.NewSubscriptionRepository,
			repo.NewOverrideRepository,
			repo.NewWebhookEventRepository,
			repo.NewUserRepository,
			newServiceParams,
			service.NewReconciliationService,
			service.NewWebhookService,
			service.NewSyncService,
			service.NewOverrideService,
			v1.NewWebhookHandler,
			v1.NewSubscriptionHandler,
			v1.NewOverrideHandler,
			newHandlers,
			newServer,
		),
		fx.Invoke(initSentry, startServer),
	)

	app.Run()
}

// newRedisClient connects to Redis only when the durable cache tier is
// enabled. A disabled tier must not make startup depend on Redis being up.
func newRedisClient(cfg *config.Configuration, log *logger.Logger) (*redis.Client, error) {
	if !cfg.Cache.Enabled {
		log.Infow("durable cache disabled, skipping redis connection")
		return nil, nil
	}
	return redis.NewClient(cfg, log)
}

func newCoalescer(cfg *config.Configuration, redisClient *redis.Client, log *logger.Logger) *coalesce.Manager {
	memory := cache.NewInMemoryCache(log)

	var durable cache.Cache
	if cfg.Cache.Enabled && redisClient != nil {
		durable = cache.NewRedisCache(redisClient, log, cfg)
	}

	return coalesce.NewManager(cfg.Coalesce, memory, durable, log)
}

func newServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	subscriptionRepo subscription.Repository,
	overrideRepo override.Repository,
	webhookEventRepo webhookevent.Repository,
	userRepo user.Repository,
	billingClient billing.Client,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:           log,
		Config:           cfg,
		SubscriptionRepo: subscriptionRepo,
		OverrideRepo:     overrideRepo,
		WebhookEventRepo: webhookEventRepo,
		UserRepo:         userRepo,
		BillingClient:    billingClient,
	}
}

func newHandlers(
	webhook *v1.WebhookHandler,
	sub *v1.SubscriptionHandler,
	ovr *v1.OverrideHandler,
) api.Handlers {
	return api.Handlers{
		Webhook:      webhook,
		Subscription: sub,
		Override:     ovr,
	}
}

func newServer(
	handlers api.Handlers,
	cfg *config.Configuration,
	authService auth.Service,
	log *logger.Logger,
) *http.Server {
	router := api.NewRouter(handlers, cfg, authService, log)
	return &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func initSentry(cfg *config.Configuration, log *logger.Logger) error {
	if !cfg.Sentry.Enabled {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.Sentry.DSN,
		Environment:      cfg.Sentry.Environment,
		TracesSampleRate: cfg.Sentry.SampleRate,
	})
	if err != nil {
		log.Errorw("failed to initialize sentry", "error", err)
		return err
	}
	return nil
}

func startServer(
	lc fx.Lifecycle,
	server *http.Server,
	pg *postgres.Client,
	redisClient *redis.Client,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting server", "address", cfg.Server.Address)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("shutting down server")
			if err := server.Shutdown(ctx); err != nil {
				return err
			}
			if redisClient != nil {
				_ = redisClient.Close()
			}
			if cfg.Sentry.Enabled {
				sentry.Flush(2 * time.Second)
			}
			return pg.Close()
		},
	})
}
