package stripe

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/types"
)

// Wire shapes for the Stripe objects we consume. Webhook payloads carry
// unexpanded references, so customer/subscription fields are plain IDs.

type subscriptionObject struct {
	ID                string     `json:"id"`
	Customer          string     `json:"customer"`
	Status            string     `json:"status"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	Created           int64      `json:"created"`
	CurrentPeriodEnd  int64      `json:"current_period_end"`
	Items             itemsList  `json:"items"`
}

type itemsList struct {
	Data []subscriptionItem `json:"data"`
}

type subscriptionItem struct {
	CurrentPeriodEnd int64       `json:"current_period_end"`
	Price            priceObject `json:"price"`
}

type priceObject struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
	AttemptCount int    `json:"attempt_count"`
}

type customerObject struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type listEnvelope[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

func (s *subscriptionObject) toBilling() *billing.Subscription {
	sub := &billing.Subscription{
		ID:                s.ID,
		CustomerID:        s.Customer,
		Status:            types.ProviderSubscriptionStatus(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CreatedAt:         time.Unix(s.Created, 0).UTC(),
	}

	periodEnd := s.CurrentPeriodEnd
	if len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		sub.PriceID = item.Price.ID
		sub.Currency = item.Price.Currency
		sub.Amount = decimal.NewFromInt(item.Price.UnitAmount).Div(decimal.NewFromInt(100))
		// Newer API versions carry the period end on the item.
		if periodEnd == 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodEnd > 0 {
		t := time.Unix(periodEnd, 0).UTC()
		sub.CurrentPeriodEnd = &t
	}
	return sub
}

func decodeSubscription(raw json.RawMessage) (*billing.Subscription, error) {
	var obj subscriptionObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return obj.toBilling(), nil
}

func decodeInvoice(raw json.RawMessage) (*billing.Invoice, error) {
	var obj invoiceObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	return &billing.Invoice{
		ID:             obj.ID,
		CustomerID:     obj.Customer,
		SubscriptionID: obj.Subscription,
		AttemptCount:   obj.AttemptCount,
	}, nil
}
