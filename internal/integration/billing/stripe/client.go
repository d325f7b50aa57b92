package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/psiflow/psiflow/internal/config"
	ierr "github.com/psiflow/psiflow/internal/errors"
	"github.com/psiflow/psiflow/internal/integration/billing"
	"github.com/psiflow/psiflow/internal/logger"
	"github.com/psiflow/psiflow/internal/types"
)

// Client implements billing.Client against the Stripe REST API. Signature
// verification uses the official webhook helper; data calls go through a
// retrying HTTP client with our own wire types.
type Client struct {
	secretKey     string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	logger        *logger.Logger
}

// NewClient creates a new Stripe billing client.
func NewClient(cfg *config.Configuration, log *logger.Logger) billing.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = log.GetRetryableHTTPLogger()

	return &Client{
		secretKey:     cfg.Billing.SecretKey,
		webhookSecret: cfg.Billing.WebhookSecret,
		baseURL:       cfg.Billing.APIBaseURL,
		httpClient:    rc.StandardClient(),
		logger:        log,
	}
}

// VerifyEvent validates the Stripe-Signature header over the raw body and
// decodes the carried object for the event's category.
func (c *Client) VerifyEvent(payload []byte, signature string) (*billing.Event, error) {
	stripeEvent, err := webhook.ConstructEvent(payload, signature, c.webhookSecret)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Webhook signature verification failed").
			Mark(ierr.ErrSignature)
	}

	eventType := types.WebhookEventType(stripeEvent.Type)
	event := &billing.Event{
		ID:       stripeEvent.ID,
		Type:     eventType,
		Category: types.CategorizeEvent(eventType),
	}

	var raw json.RawMessage
	if stripeEvent.Data != nil {
		raw = stripeEvent.Data.Raw
	}

	switch event.Category {
	case types.EventCategorySubscriptionChange:
		sub, err := decodeSubscription(raw)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed subscription payload").
				Mark(ierr.ErrValidation)
		}
		event.Subscription = sub
	case types.EventCategoryInvoicePaymentFailed, types.EventCategoryInvoicePaymentSucceeded:
		inv, err := decodeInvoice(raw)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("Malformed invoice payload").
				Mark(ierr.ErrValidation)
		}
		event.Invoice = inv
	}

	return event, nil
}

func (c *Client) GetCustomer(ctx context.Context, customerID string) (*billing.Customer, error) {
	var obj customerObject
	if err := c.do(ctx, http.MethodGet, "/v1/customers/"+customerID, nil, &obj); err != nil {
		return nil, err
	}
	return &billing.Customer{ID: obj.ID, Email: obj.Email}, nil
}

func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error) {
	params := url.Values{}
	params.Set("email", email)
	params.Set("limit", "1")

	var list listEnvelope[customerObject]
	if err := c.do(ctx, http.MethodGet, "/v1/customers?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}
	if len(list.Data) == 0 {
		return nil, ierr.NewError("no billing customer for email").
			WithHint("User has no billing provider record").
			Mark(ierr.ErrNotFound)
	}
	return &billing.Customer{ID: list.Data[0].ID, Email: list.Data[0].Email}, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billing.Subscription, error) {
	var obj subscriptionObject
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions/"+subscriptionID, nil, &obj); err != nil {
		return nil, err
	}
	return obj.toBilling(), nil
}

func (c *Client) ListActiveSubscriptions(ctx context.Context, customerID string) ([]*billing.Subscription, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("status", "active")
	params.Set("limit", "100")

	var list listEnvelope[subscriptionObject]
	if err := c.do(ctx, http.MethodGet, "/v1/subscriptions?"+params.Encode(), nil, &list); err != nil {
		return nil, err
	}

	subs := make([]*billing.Subscription, 0, len(list.Data))
	for i := range list.Data {
		subs = append(subs, list.Data[i].toBilling())
	}
	return subs, nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/subscriptions/"+subscriptionID, nil, nil)
}

// do performs an authenticated request against the Stripe API.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build provider request").
			Mark(ierr.ErrInternal)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Billing provider request failed").
			WithReportableDetails(map[string]any{"path": path}).
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to read provider response").
			Mark(ierr.ErrHTTPClient)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ierr.NewErrorf("provider resource not found: %s", path).
			Mark(ierr.ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		c.logger.Errorw("stripe API error",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return ierr.NewError(fmt.Sprintf("provider returned status %d", resp.StatusCode)).
			WithHint("Billing provider request failed").
			WithReportableDetails(map[string]any{"path": path, "status": resp.StatusCode}).
			Mark(ierr.ErrHTTPClient)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to decode provider response").
			Mark(ierr.ErrHTTPClient)
	}
	return nil
}
