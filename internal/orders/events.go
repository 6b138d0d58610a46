package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderCancelled     = "OrderCancelled"
	EventOrderStatusChanged = "OrderStatusChanged"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	UserID     int64       `json:"user_id"`
	Status     Status      `json:"status"`
	TotalCents int64       `json:"total_cents"`
	Items      []OrderLine `json:"items"`
}

type OrderCancelledPayload struct {
	OrderID string `json:"order_id"`
	UserID  int64  `json:"user_id"`
}

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	OldStatus Status `json:"old_status"`
	NewStatus Status `json:"new_status"`
}
