// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderPlacedEvent is published after the orchestrator committed a new
// pending order. It carries enough for downstream consumers (mail,
// analytics, fulfillment) to act without querying the primary database.
type OrderPlacedEvent struct {
	OrderCode string   `json:"order_code"`
	EventID   uint64   `json:"event_id"`
	EventName string   `json:"event_name"`
	Email     string   `json:"email"`
	Locale    string   `json:"locale"`
	Items     []string `json:"items"`
	Total     string   `json:"total"`
	Currency  string   `json:"currency"`
	ExpiresAt string   `json:"expires_at"`
	PlacedAt  string   `json:"placed_at"`
}

// OrderPaidEvent is published after a pending order was marked paid.
type OrderPaidEvent struct {
	OrderCode string `json:"order_code"`
	EventID   uint64 `json:"event_id"`
	Email     string `json:"email"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
	PaidAt    string `json:"paid_at"`
}
