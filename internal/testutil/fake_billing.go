package testutil

import (
	"context"
	"strings"
	"sync"

	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/types"
)

// FakeBillingClient implements billing.Client against in-memory provider
// state. VerifyEvent trusts any payload whose signature is not "invalid",
// looking the event up by the payload string; tests register events with
// AddEvent.
type FakeBillingClient struct {
	mu sync.Mutex

	customers     map[string]*billing.Customer
	subscriptions map[string]*billing.Subscription
	events        map[string]*billing.Event
	cancelled     []string

	// CancelErr, when set, is returned by every CancelSubscription call.
	CancelErr error
	// ListCalls counts ListActiveSubscriptions invocations, letting tests
	// assert how many provider round trips a burst produced.
	ListCalls int
}

// NewFakeBillingClient creates an empty fake provider
func NewFakeBillingClient() *FakeBillingClient {
	return &FakeBillingClient{
		customers:     make(map[string]*billing.Customer),
		subscriptions: make(map[string]*billing.Subscription),
		events:        make(map[string]*billing.Event),
	}
}

// AddCustomer registers a provider customer.
func (f *FakeBillingClient) AddCustomer(c *billing.Customer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers[c.ID] = c
}

// AddSubscription registers a provider subscription.
func (f *FakeBillingClient) AddSubscription(s *billing.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscriptions[s.ID] = s
}

// AddEvent registers an event deliverable via VerifyEvent with the given
// payload key.
func (f *FakeBillingClient) AddEvent(payloadKey string, e *billing.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[payloadKey] = e
}

// Cancelled returns the IDs passed to CancelSubscription, in order.
func (f *FakeBillingClient) Cancelled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.cancelled))
	copy(out, f.cancelled)
	return out
}

func (f *FakeBillingClient) VerifyEvent(payload []byte, signature string) (*billing.Event, error) {
	if signature == "invalid" {
		return nil, ierr.NewError("signature mismatch").Mark(ierr.ErrSignature)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	event, ok := f.events[string(payload)]
	if !ok {
		return nil, ierr.NewError("unknown test payload").Mark(ierr.ErrValidation)
	}
	return event, nil
}

func (f *FakeBillingClient) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.customers[customerID]
	if !ok {
		return nil, ierr.NewErrorf("customer %s not found", customerID).Mark(ierr.ErrNotFound)
	}
	return c, nil
}

func (f *FakeBillingClient) FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.customers {
		if strings.EqualFold(c.Email, email) {
			return c, nil
		}
	}
	return nil, ierr.NewErrorf("no customer with email %s", email).Mark(ierr.ErrNotFound)
}

func (f *FakeBillingClient) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.subscriptions[subscriptionID]
	if !ok {
		return nil, ierr.NewErrorf("subscription %s not found", subscriptionID).Mark(ierr.ErrNotFound)
	}
	return s, nil
}

func (f *FakeBillingClient) ListActiveSubscriptions(ctx context.Context, customerID string) ([]*billing.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	var out []*billing.Subscription
	for _, s := range f.subscriptions {
		if s.CustomerID == customerID && s.Status.Entitled() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *FakeBillingClient) CancelSubscription(ctx context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.CancelErr != nil {
		return f.CancelErr
	}
	s, ok := f.subscriptions[subscriptionID]
	if !ok {
		return ierr.NewErrorf("subscription %s not found", subscriptionID).Mark(ierr.ErrNotFound)
	}
	s.Status = types.ProviderSubscriptionCanceled
	f.cancelled = append(f.cancelled, subscriptionID)
	return nil
}
