package types

// WebhookEventType is the raw event type string sent by the billing provider.
type WebhookEventType string

const (
	WebhookEventSubscriptionCreated WebhookEventType = "customer.subscription.created"
	WebhookEventSubscriptionUpdated WebhookEventType = "customer.subscription.updated"
	WebhookEventSubscriptionDeleted WebhookEventType = "customer.subscription.deleted"
	WebhookEventInvoiceFailed       WebhookEventType = "invoice.payment_failed"
	WebhookEventInvoiceSucceeded    WebhookEventType = "invoice.payment_succeeded"
)

// EventCategory is the closed set of event families the ingestion handler
// dispatches on. Raw type strings are folded into a category exactly once,
// at the edge; an unknown string becomes EventCategoryUnhandled, which is
// logged and acknowledged without processing.
type EventCategory int

const (
	EventCategoryUnhandled EventCategory = iota
	EventCategorySubscriptionChange
	EventCategoryInvoicePaymentFailed
	EventCategoryInvoicePaymentSucceeded
)

func (c EventCategory) String() string {
	switch c {
	case EventCategorySubscriptionChange:
		return "subscription_change"
	case EventCategoryInvoicePaymentFailed:
		return "invoice_payment_failed"
	case EventCategoryInvoicePaymentSucceeded:
		return "invoice_payment_succeeded"
	default:
		return "unhandled"
	}
}

// CategorizeEvent maps a provider event type to its category.
func CategorizeEvent(eventType WebhookEventType) EventCategory {
	switch eventType {
	case WebhookEventSubscriptionCreated,
		WebhookEventSubscriptionUpdated,
		WebhookEventSubscriptionDeleted:
		return EventCategorySubscriptionChange
	case WebhookEventInvoiceFailed:
		return EventCategoryInvoicePaymentFailed
	case WebhookEventInvoiceSucceeded:
		return EventCategoryInvoicePaymentSucceeded
	default:
		return EventCategoryUnhandled
	}
}
