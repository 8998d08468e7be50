package orders

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CustomerLookup resolves a customer id. Absence is a normal result: a
// missing customer is returned as (nil, nil), not an error.
type CustomerLookup interface {
	FindByID(ctx context.Context, id string) (*Customer, error)
}

// ProductCatalog reads price/stock snapshots and applies stock decrements.
// FindAllByID returns the subset of requested ids that exist.
// UpdateQuantities must re-validate each decrement at write time and reject
// the whole batch with *InsufficientStockError if stock would go negative.
type ProductCatalog interface {
	FindAllByID(ctx context.Context, ids []string) ([]ProductSnapshot, error)
	UpdateQuantities(ctx context.Context, updates []QuantityUpdate) error
}

// OrderStore persists an order plus its line items and returns the aggregate
// with generated ids filled in. SetStatus must respect CanTransition.
type OrderStore interface {
	Create(ctx context.Context, o NewOrder) (*Order, error)
	SetStatus(ctx context.Context, orderID string, st Status) error
}

type Service struct {
	customers CustomerLookup
	catalog   ProductCatalog
	store     OrderStore
	log       *zap.Logger
}

func NewService(customers CustomerLookup, catalog ProductCatalog, store OrderStore, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{customers: customers, catalog: catalog, store: store, log: log}
}

// Create runs the full order-placement flow: validate customer and products,
// freeze unit prices from a single snapshot, persist the order, then apply
// the stock decrements. Validation failures leave no side effects; a failed
// decrement after persistence is surfaced as *ReconciliationError.
func (s *Service) Create(ctx context.Context, customerID string, items []ItemRequest) (*Order, error) {
	if customerID == "" {
		return nil, ErrCustomerRequired
	}
	if len(items) == 0 {
		return nil, ErrEmptyRequest
	}
	for _, it := range items {
		if it.Qty <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID, Qty: it.Qty}
		}
	}

	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("orders: customer lookup: %w", err)
	}
	if customer == nil {
		return nil, &CustomerNotFoundError{CustomerID: customerID}
	}

	snapshots, err := s.catalog.FindAllByID(ctx, distinctProductIDs(items))
	if err != nil {
		return nil, fmt.Errorf("orders: catalog fetch: %w", err)
	}
	if len(snapshots) == 0 {
		return nil, ErrNoProducts
	}

	byID := make(map[string]ProductSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byID[snap.ID] = snap
	}

	// First missing id wins, in request order.
	for _, it := range items {
		if _, ok := byID[it.ProductID]; !ok {
			return nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
	}

	// First short line wins, in request order. Each occurrence of a duplicated
	// product id is checked against the same snapshot; the write-time guard in
	// UpdateQuantities catches what slips through here.
	for _, it := range items {
		snap := byID[it.ProductID]
		if it.Qty > snap.Available {
			return nil, &InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Qty,
				Available: snap.Available,
			}
		}
	}

	lines := make([]LineItem, 0, len(items))
	for _, it := range items {
		lines = append(lines, LineItem{
			ProductID:  it.ProductID,
			Qty:        it.Qty,
			PriceCents: byID[it.ProductID].PriceCents,
		})
	}

	order, err := s.store.Create(ctx, NewOrder{
		CustomerID: customer.ID,
		Status:     StatusCreated,
		Items:      lines,
	})
	if err != nil {
		return nil, fmt.Errorf("orders: create: %w", err)
	}

	// Decrements are computed from the pre-fetched snapshot, not a re-fetch.
	updates := make([]QuantityUpdate, 0, len(order.Items))
	for _, li := range order.Items {
		snap := byID[li.ProductID]
		updates = append(updates, QuantityUpdate{
			ProductID:   li.ProductID,
			NewQuantity: snap.Available - li.Qty,
			Decrement:   li.Qty,
		})
	}

	if err := s.catalog.UpdateQuantities(ctx, updates); err != nil {
		s.log.Error("stock decrement failed after order persisted",
			zap.String("order_id", order.ID), zap.Error(err))
		if serr := s.store.SetStatus(ctx, order.ID, StatusReconciling); serr != nil {
			s.log.Warn("order status update failed", zap.String("order_id", order.ID), zap.Error(serr))
		}
		return nil, &ReconciliationError{OrderID: order.ID, Err: err}
	}

	if err := s.store.SetStatus(ctx, order.ID, StatusCompleted); err != nil {
		s.log.Warn("order status update failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	order.Status = StatusCompleted
	s.log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.Int("items", len(order.Items)),
		zap.Int("total_cents", order.TotalCents))
	return order, nil
}

// distinctProductIDs keeps first-occurrence order; the catalog gets each id
// once even when the request repeats it.
func distinctProductIDs(items []ItemRequest) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it.ProductID] {
			continue
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	return ids
}
