package orders

import (
	"errors"
	"fmt"
)

var (
	// ErrNoProducts: the catalog returned nothing for the requested ids.
	ErrNoProducts = errors.New("orders: no requested products found")

	ErrEmptyRequest = errors.New("orders: at least one line item is required")

	ErrCustomerRequired = errors.New("orders: customer id is required")
)

type CustomerNotFoundError struct {
	CustomerID string
}

func (e *CustomerNotFoundError) Error() string {
	return fmt.Sprintf("orders: customer %s not found", e.CustomerID)
}

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("orders: product %s not found", e.ProductID)
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type InvalidQuantityError struct {
	ProductID string
	Qty       int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("orders: invalid quantity %d for product %s", e.Qty, e.ProductID)
}

// ReconciliationError reports a stock decrement that failed after the order
// was already persisted. The order stands; inventory still has to catch up.
type ReconciliationError struct {
	OrderID string
	Err     error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("orders: order %s persisted but stock decrement failed: %v", e.OrderID, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }
