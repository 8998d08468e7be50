package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type OrderStore struct {
	mu     sync.RWMutex
	orders map[string]*orders.Order
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]*orders.Order)}
}

func (s *OrderStore) Create(ctx context.Context, o orders.NewOrder) (*orders.Order, error) {
	_ = ctx

	out := &orders.Order{
		ID:         uuid.NewString(),
		CustomerID: o.CustomerID,
		Status:     o.Status,
		CreatedAt:  time.Now().UTC(),
	}
	out.Items = make([]orders.LineItem, 0, len(o.Items))
	for _, li := range o.Items {
		li.ID = uuid.NewString()
		li.OrderID = out.ID
		out.TotalCents += li.PriceCents * li.Qty
		out.Items = append(out.Items, li)
	}

	s.mu.Lock()
	s.orders[out.ID] = cloneOrder(out)
	s.mu.Unlock()
	return out, nil
}

func (s *OrderStore) SetStatus(ctx context.Context, orderID string, st orders.Status) error {
	_ = ctx

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("memory: order %s not found", orderID)
	}
	if !orders.CanTransition(o.Status, st) {
		return fmt.Errorf("memory: order %s: cannot transition %s -> %s", orderID, o.Status, st)
	}
	o.Status = st
	return nil
}

func (s *OrderStore) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("memory: order %s not found", orderID)
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) GetStatus(ctx context.Context, orderID string) (orders.Status, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	return o.Status, nil
}

// Count reports how many orders have been persisted; tests use it to assert
// that failed validations leave nothing behind.
func (s *OrderStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders)
}

func cloneOrder(o *orders.Order) *orders.Order {
	clone := *o
	clone.Items = append([]orders.LineItem(nil), o.Items...)
	return &clone
}
