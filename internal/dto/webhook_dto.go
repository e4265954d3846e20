package dto

// WebhookAck is returned to the payment provider for every authenticated
// event, including ones that changed nothing.
type WebhookAck struct {
	Received bool   `json:"received"`
	EventID  string `json:"event_id,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
}
