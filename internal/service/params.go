package service

import (
	"github.com/psiflow/psiflow/internal/config"
	"github.com/psiflow/psiflow/internal/domain/override"
	"github.com/psiflow/psiflow/internal/domain/subscription"
	"github.com/psiflow/psiflow/internal/domain/user"
	"github.com/psiflow/psiflow/internal/domain/webhookevent"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/logger"
)

// ServiceParams bundles the dependencies shared by all services. Tests build
// one from in-memory stores and a fake billing client.
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration

	SubscriptionRepo subscription.Repository
	OverrideRepo     override.Repository
	WebhookEventRepo webhookevent.Repository
	UserRepo         user.Repository

	BillingClient billing.Client
}
