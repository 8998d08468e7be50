package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

func TestLockOrder_SortsByProductID(t *testing.T) {
	in := []orders.QuantityUpdate{
		{ProductID: "p3", Decrement: 1},
		{ProductID: "p1", Decrement: 2},
		{ProductID: "p2", Decrement: 3},
		{ProductID: "p1", Decrement: 4},
	}

	got := lockOrder(in)

	ids := make([]string, 0, len(got))
	for _, u := range got {
		ids = append(ids, u.ProductID)
	}
	assert.Equal(t, []string{"p1", "p1", "p2", "p3"}, ids)

	// the request-ordered input stays untouched for the caller
	assert.Equal(t, "p3", in[0].ProductID)
}
