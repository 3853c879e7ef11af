package domain

import "time"

// ReceiptStatusEvent represents the message the payment provider emits for
// settlement lifecycle updates, delivered over the receipt event queue.
type ReceiptStatusEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	BatchID     string    `json:"batch_id"`
	PayeeID     string    `json:"payee_id"`
	ProviderRef string    `json:"provider_ref"`
	Status      string    `json:"status"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Reason      string    `json:"reason"`
	OccurredAt  time.Time `json:"occurred_at"`
}
