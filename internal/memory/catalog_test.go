package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

func TestCatalog_FindAllByID_ReturnsExistingSubset(t *testing.T) {
	c := NewCatalog()
	p1 := c.Add("SKU-1", "Widget", 1000, 5)
	c.Add("SKU-2", "Gadget", 500, 3)

	snaps, err := c.FindAllByID(context.Background(), []string{p1.ID, "ghost"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, p1.ID, snaps[0].ID)
	assert.Equal(t, 1000, snaps[0].PriceCents)
	assert.Equal(t, 5, snaps[0].Available)
}

func TestCatalog_UpdateQuantities_RejectsBatchAtomically(t *testing.T) {
	c := NewCatalog()
	p1 := c.Add("SKU-1", "Widget", 1000, 5)
	p2 := c.Add("SKU-2", "Gadget", 500, 1)

	err := c.UpdateQuantities(context.Background(), []orders.QuantityUpdate{
		{ProductID: p1.ID, Decrement: 2},
		{ProductID: p2.ID, Decrement: 4},
	})

	var short *orders.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, p2.ID, short.ProductID)

	// nothing applied
	assert.Equal(t, 5, c.Stock(p1.ID))
	assert.Equal(t, 1, c.Stock(p2.ID))
}

func TestCatalog_UpdateQuantities_DuplicateLinesSummed(t *testing.T) {
	c := NewCatalog()
	p := c.Add("SKU-1", "Widget", 1000, 5)

	err := c.UpdateQuantities(context.Background(), []orders.QuantityUpdate{
		{ProductID: p.ID, Decrement: 3},
		{ProductID: p.ID, Decrement: 3},
	})

	var short *orders.InsufficientStockError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 5, c.Stock(p.ID))
}

func TestCatalog_UpdateQuantities_UnknownProduct(t *testing.T) {
	c := NewCatalog()

	err := c.UpdateQuantities(context.Background(), []orders.QuantityUpdate{
		{ProductID: "ghost", Decrement: 1},
	})

	var notFound *orders.ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.ProductID)
}

func TestCatalog_ConcurrentDecrements_NeverNegative(t *testing.T) {
	c := NewCatalog()
	p := c.Add("SKU-1", "Widget", 1000, 50)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.UpdateQuantities(context.Background(), []orders.QuantityUpdate{
				{ProductID: p.ID, Decrement: 1},
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, c.Stock(p.ID))
}
