package reconcile_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/memory"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/reconcile"
)

func reconcileMessage(t *testing.T, orderID string, items []orders.ItemQty) kafkago.Message {
	t.Helper()
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockReconcileNeeded,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test",
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.StockReconcilePayload{OrderID: orderID, Items: items}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(ev)}
}

func pendingOrder(t *testing.T, store *memory.OrderStore, productID string, qty int) *orders.Order {
	t.Helper()
	order, err := store.Create(context.Background(), orders.NewOrder{
		CustomerID: "c1",
		Status:     orders.StatusCreated,
		Items:      []orders.LineItem{{ProductID: productID, Qty: qty, PriceCents: 1000}},
	})
	require.NoError(t, err)
	require.NoError(t, store.SetStatus(context.Background(), order.ID, orders.StatusReconciling))
	return order
}

type mapDedup struct {
	seen map[string]bool
}

func newMapDedup() *mapDedup { return &mapDedup{seen: make(map[string]bool)} }

func (d *mapDedup) Seen(ctx context.Context, eventID string) (bool, error) {
	return d.seen[eventID], nil
}

func (d *mapDedup) Mark(ctx context.Context, eventID string) error {
	d.seen[eventID] = true
	return nil
}

// flakyCatalog fails the first UpdateQuantities calls to mimic a catalog
// outage, then recovers.
type flakyCatalog struct {
	*memory.Catalog
	failures int
}

func (f *flakyCatalog) UpdateQuantities(ctx context.Context, updates []orders.QuantityUpdate) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("catalog unavailable")
	}
	return f.Catalog.UpdateQuantities(ctx, updates)
}

func newService(catalog orders.ProductCatalog, store *memory.OrderStore) *reconcile.Service {
	return &reconcile.Service{
		Catalog: catalog,
		Orders:  store,
		// never started: Publish only enqueues, nothing hits the wire
		ProducerOK:     kafkax.NewProducer([]string{"localhost:9092"}, orders.TopicStockAdjusted, 16, nil),
		ProducerReject: kafkax.NewProducer([]string{"localhost:9092"}, orders.TopicStockRejected, 16, nil),
		ServiceName:    "reconciler-test",
	}
}

func TestHandleReconcileNeeded_AppliesDecrement(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	p := catalog.Add("SKU-1", "Widget", 1000, 5)
	order := pendingOrder(t, store, p.ID, 3)

	svc := newService(catalog, store)
	msg := reconcileMessage(t, order.ID, []orders.ItemQty{{ProductID: p.ID, Qty: 3}})

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))

	assert.Equal(t, 2, catalog.Stock(p.ID))
	st, err := store.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, st)
}

func TestHandleReconcileNeeded_OutOfStockFailsOrder(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	p := catalog.Add("SKU-1", "Widget", 1000, 1)
	order := pendingOrder(t, store, p.ID, 3)

	svc := newService(catalog, store)
	msg := reconcileMessage(t, order.ID, []orders.ItemQty{{ProductID: p.ID, Qty: 3}})

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))

	assert.Equal(t, 1, catalog.Stock(p.ID))
	st, err := store.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, st)
}

func TestHandleReconcileNeeded_ProductGoneFailsOrder(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	order := pendingOrder(t, store, "ghost", 1)

	svc := newService(catalog, store)
	msg := reconcileMessage(t, order.ID, []orders.ItemQty{{ProductID: "ghost", Qty: 1}})

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))

	st, err := store.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusFailed, st)
}

func TestHandleReconcileNeeded_TransientFailureThenRetry(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	p := catalog.Add("SKU-1", "Widget", 1000, 5)
	order := pendingOrder(t, store, p.ID, 3)

	dedup := newMapDedup()
	svc := newService(&flakyCatalog{Catalog: catalog, failures: 1}, store)
	svc.Dedup = dedup
	msg := reconcileMessage(t, order.ID, []orders.ItemQty{{ProductID: p.ID, Qty: 3}})

	// the outage surfaces as an error so the consumer does not commit,
	// and the event stays unmarked for the redelivery
	require.Error(t, svc.HandleReconcileNeeded(context.Background(), msg))
	assert.Empty(t, dedup.seen)
	assert.Equal(t, 5, catalog.Stock(p.ID))
	st, err := store.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusReconciling, st)

	// redelivery of the same message finishes the reconcile
	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))
	assert.Len(t, dedup.seen, 1)
	assert.Equal(t, 2, catalog.Stock(p.ID))
	st, err = store.GetStatus(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, st)
}

func TestHandleReconcileNeeded_SkipsMarkedEvent(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	p := catalog.Add("SKU-1", "Widget", 1000, 5)
	order := pendingOrder(t, store, p.ID, 3)

	dedup := newMapDedup()
	svc := newService(catalog, store)
	svc.Dedup = dedup
	msg := reconcileMessage(t, order.ID, []orders.ItemQty{{ProductID: p.ID, Qty: 3}})

	var env orders.Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	require.NoError(t, dedup.Mark(context.Background(), env.EventID))

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))
	assert.Equal(t, 5, catalog.Stock(p.ID))
}

func TestHandleReconcileNeeded_ResolvedOrderIsNotDecrementedTwice(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	p := catalog.Add("SKU-1", "Widget", 1000, 5)
	order := pendingOrder(t, store, p.ID, 3)

	svc := newService(catalog, store)
	svc.Dedup = newMapDedup()
	items := []orders.ItemQty{{ProductID: p.ID, Qty: 3}}

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), reconcileMessage(t, order.ID, items)))
	assert.Equal(t, 2, catalog.Stock(p.ID))

	// a second event for the same order finds it COMPLETED and leaves stock alone
	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), reconcileMessage(t, order.ID, items)))
	assert.Equal(t, 2, catalog.Stock(p.ID))
}

func TestHandleReconcileNeeded_IgnoresOtherEvents(t *testing.T) {
	catalog := memory.NewCatalog()
	store := memory.NewOrderStore()
	svc := newService(catalog, store)

	ev := orders.Envelope{
		EventID:   uuid.NewString(),
		EventType: orders.EventOrderCreated,
		Payload:   kafkax.MustMarshal(orders.OrderCreatedPayload{OrderID: "x"}),
	}
	msg := kafkago.Message{Value: kafkax.MustMarshal(ev)}

	require.NoError(t, svc.HandleReconcileNeeded(context.Background(), msg))
}
