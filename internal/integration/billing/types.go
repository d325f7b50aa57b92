package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/psiflow/psiflow/internal/types"
)

// Customer is the provider-side customer record matched to a local user by
// contact address.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Subscription is the provider-side recurring subscription object, reduced
// to the fields reconciliation needs.
type Subscription struct {
	ID                string                           `json:"id"`
	CustomerID        string                           `json:"customer_id"`
	Status            types.ProviderSubscriptionStatus `json:"status"`
	PriceID           string                           `json:"price_id"`
	Amount            decimal.Decimal                  `json:"amount"`
	Currency          string                           `json:"currency"`
	CurrentPeriodEnd  *time.Time                       `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool                             `json:"cancel_at_period_end"`
	CreatedAt         time.Time                        `json:"created_at"`
}

// Invoice is the provider-side invoice object carried by payment events.
type Invoice struct {
	ID             string `json:"id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	AttemptCount   int    `json:"attempt_count"`
}

// Event is a verified, decoded provider lifecycle event. Exactly one of
// Subscription/Invoice is populated depending on the category; unhandled
// events carry neither.
type Event struct {
	ID           string
	Type         types.WebhookEventType
	Category     types.EventCategory
	Subscription *Subscription
	Invoice      *Invoice
}
