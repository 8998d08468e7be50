package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventStockReconcileNeeded = "StockReconcileNeeded"
	EventStockAdjusted        = "StockAdjusted"
	EventStockRejected        = "StockRejected"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type ItemPrice struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID    string      `json:"order_id"`
	CustomerID string      `json:"customer_id"`
	Items      []ItemPrice `json:"items"`
	TotalCents int         `json:"total_cents"`
}

// StockReconcilePayload flags an order whose line items were persisted but
// whose stock decrement did not land.
type StockReconcilePayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
	Reason  string    `json:"reason,omitempty"`
}

type StockAdjustedPayload struct {
	OrderID string    `json:"order_id"`
	Items   []ItemQty `json:"items"`
}

type StockRejectedDetail struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockRejectedPayload struct {
	OrderID string                `json:"order_id"`
	Reason  string                `json:"reason"` // e.g. OUT_OF_STOCK
	Details []StockRejectedDetail `json:"details,omitempty"`
}
