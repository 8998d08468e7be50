package orders

import "time"

type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}

type Product struct {
	ID         string
	SKU        string
	Name       string
	Stock      int
	PriceCents int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProductSnapshot is a point-in-time read of price + stock taken once per
// order creation. Must not be reused across invocations.
type ProductSnapshot struct {
	ID         string
	PriceCents int
	Available  int
}

type ItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type LineItem struct {
	ID         string
	OrderID    string
	ProductID  string
	Qty        int
	PriceCents int // unit price frozen at creation time
}

type Order struct {
	ID         string
	CustomerID string
	Status     Status
	TotalCents int
	Items      []LineItem
	CreatedAt  time.Time
}

// NewOrder is the not-yet-persisted aggregate handed to the OrderStore.
type NewOrder struct {
	CustomerID string
	Status     Status
	Items      []LineItem
}

// QuantityUpdate carries both the absolute quantity derived from the snapshot
// and the delta, so catalogs can re-validate the decrement at write time.
type QuantityUpdate struct {
	ProductID   string `json:"product_id"`
	NewQuantity int    `json:"new_quantity"`
	Decrement   int    `json:"decrement"`
}
