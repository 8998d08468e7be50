// Package memory holds mutex-guarded in-process implementations of the
// order collaborators. They back the test suites and local development
// without postgres; semantics match the pgx adapters, including the
// write-time stock re-check.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type CustomerStore struct {
	mu        sync.RWMutex
	customers map[string]orders.Customer
}

func NewCustomerStore() *CustomerStore {
	return &CustomerStore{customers: make(map[string]orders.Customer)}
}

func (s *CustomerStore) Add(name, email string) orders.Customer {
	c := orders.Customer{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.customers[c.ID] = c
	s.mu.Unlock()
	return c
}

func (s *CustomerStore) FindByID(ctx context.Context, id string) (*orders.Customer, error) {
	_ = ctx

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, nil
	}
	clone := c
	return &clone, nil
}
