// Package events publishes order lifecycle events to Kafka for
// downstream consumers (analytics, fulfillment, search indexing).
package events

import "time"

const (
	TypeOrderCreated       = "order.created"
	TypeOrderStatusChanged = "order.status_changed"
	TypeOrderPaid          = "order.paid"
	TypeOrderCancelled     = "order.cancelled"
)

// OrderEvent is the envelope written to the order topic. The order
// number is used as the message key so events for one order stay in
// a single partition.
type OrderEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	PrevStatus  string    `json:"prev_status,omitempty"`
	Total       string    `json:"total,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
