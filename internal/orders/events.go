package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderFulfilled = "OrderFulfilled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`   // uuid
	EventType     string          `json:"event_type"` // one of the consts above
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "storefront-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID    string    `json:"order_id"`
	OrderRef   string    `json:"order_ref"`
	Items      []ItemQty `json:"items"`
	TotalCents int64     `json:"total_cents"`
	PlacedAt   time.Time `json:"placed_at"`
}

type OrderFulfilledPayload struct {
	OrderID  string    `json:"order_id"`
	OrderRef string    `json:"order_ref"`
	DoneAt   time.Time `json:"done_at"`
}
