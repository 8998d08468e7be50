package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type Catalog struct {
	mu       sync.RWMutex
	products map[string]orders.Product
}

func NewCatalog() *Catalog {
	return &Catalog{products: make(map[string]orders.Product)}
}

func (c *Catalog) Add(sku, name string, priceCents, stock int) orders.Product {
	now := time.Now().UTC()
	p := orders.Product{
		ID:         uuid.NewString(),
		SKU:        sku,
		Name:       name,
		Stock:      stock,
		PriceCents: priceCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	c.mu.Lock()
	c.products[p.ID] = p
	c.mu.Unlock()
	return p
}

func (c *Catalog) Stock(productID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products[productID].Stock
}

func (c *Catalog) FindAllByID(ctx context.Context, ids []string) ([]orders.ProductSnapshot, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []orders.ProductSnapshot
	for _, id := range ids {
		p, ok := c.products[id]
		if !ok {
			continue
		}
		out = append(out, orders.ProductSnapshot{
			ID:         p.ID,
			PriceCents: p.PriceCents,
			Available:  p.Stock,
		})
	}
	return out, nil
}

// UpdateQuantities re-checks every decrement under the lock before touching
// anything: all updates land or none do, and stock never goes negative.
func (c *Catalog) UpdateQuantities(ctx context.Context, updates []orders.QuantityUpdate) error {
	_ = ctx

	c.mu.Lock()
	defer c.mu.Unlock()

	// Sum decrements per product so duplicate lines in one batch cannot
	// slip past the check individually.
	needed := make(map[string]int, len(updates))
	for _, u := range updates {
		if _, ok := c.products[u.ProductID]; !ok {
			return &orders.ProductNotFoundError{ProductID: u.ProductID}
		}
		needed[u.ProductID] += u.Decrement
	}
	for _, u := range updates {
		if p := c.products[u.ProductID]; p.Stock < needed[u.ProductID] {
			return &orders.InsufficientStockError{
				ProductID: u.ProductID,
				Requested: needed[u.ProductID],
				Available: p.Stock,
			}
		}
	}

	for _, u := range updates {
		p := c.products[u.ProductID]
		p.Stock -= u.Decrement
		p.UpdatedAt = time.Now().UTC()
		c.products[u.ProductID] = p
	}
	return nil
}

func (c *Catalog) List(ctx context.Context) ([]orders.Product, error) {
	_ = ctx

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]orders.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}
