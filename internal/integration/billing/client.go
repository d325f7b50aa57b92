package billing

import (
	"context"
)

// Client is the billing provider boundary. Every provider interaction in
// the reconciliation engine goes through this interface so services can be
// tested against a fake.
type Client interface {
	// VerifyEvent checks the transport signature over the raw payload and
	// decodes the event. Signature failures are terminal (ErrSignature);
	// the provider will not redeliver after a 4xx.
	VerifyEvent(payload []byte, signature string) (*Event, error)

	// GetCustomer fetches a provider customer by ID.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// FindCustomerByEmail resolves a customer by contact address, or
	// ErrNotFound when the user has no provider record yet.
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)

	// GetSubscription fetches a single subscription.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)

	// ListActiveSubscriptions returns every currently active subscription
	// for the customer. More than one indicates a duplicate checkout.
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]*Subscription, error)

	// CancelSubscription cancels a subscription immediately.
	CancelSubscription(ctx context.Context, subscriptionID string) error
}
