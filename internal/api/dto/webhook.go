package dto

// WebhookResponse acknowledges receipt of a provider event. Duplicate is set
// when the event was already in the processed ledger and the delivery was a
// no-op replay.
type WebhookResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}
