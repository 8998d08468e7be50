// Package reconcile retries the stock decrement for orders that were
// persisted while the catalog write failed. Insufficiency at retry time is
// final: the order is marked FAILED and a rejection event goes out.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

type OrderStatusStore interface {
	GetStatus(ctx context.Context, orderID string) (orders.Status, error)
	SetStatus(ctx context.Context, orderID string, st orders.Status) error
}

// EventDedup remembers event ids that reached a terminal outcome. An event
// must not be marked before its order is resolved, otherwise a transient
// failure followed by redelivery would leave the order stuck RECONCILING.
type EventDedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type Service struct {
	Catalog        orders.ProductCatalog
	Orders         OrderStatusStore
	Dedup          EventDedup
	Redis          *redis.Client    // status cache only
	ProducerOK     *kafkax.Producer // publishes stock.adjusted
	ProducerReject *kafkax.Producer // publishes stock.rejected
	ServiceName    string
	Log            *zap.Logger
}

// HandleReconcileNeeded is wired as the consumer handler for the
// order.stock.reconcile topic.
func (s *Service) HandleReconcileNeeded(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventStockReconcileNeeded {
		return nil // ignore
	}

	if s.Dedup != nil {
		if seen, derr := s.Dedup.Seen(ctx, env.EventID); derr == nil && seen {
			return nil
		}
	}

	p, err := kafkax.UnwrapPayload[orders.StockReconcilePayload](env.Payload)
	if err != nil {
		return err
	}

	// Redelivery after the order was resolved (crash between the catalog
	// write and the dedup mark) must not decrement a second time.
	st, err := s.Orders.GetStatus(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if st != orders.StatusReconciling {
		s.markDone(ctx, env.EventID)
		return nil
	}

	updates, missing, err := s.buildUpdates(ctx, p.Items)
	if err != nil {
		return err
	}
	if missing != "" {
		if err := s.reject(ctx, p.OrderID, env.TraceID, []orders.StockRejectedDetail{{ProductID: missing}}, "PRODUCT_GONE"); err != nil {
			return err
		}
		s.markDone(ctx, env.EventID)
		return nil
	}

	err = s.Catalog.UpdateQuantities(ctx, updates)
	var stockErr *orders.InsufficientStockError
	var prodErr *orders.ProductNotFoundError
	switch {
	case err == nil:
		if serr := s.Orders.SetStatus(ctx, p.OrderID, orders.StatusCompleted); serr != nil {
			s.log().Warn("status update failed", zap.String("order_id", p.OrderID), zap.Error(serr))
		}
		s.cacheStatus(ctx, p.OrderID, orders.StatusCompleted)
		if perr := s.publishAdjusted(ctx, p.OrderID, p.Items, env.TraceID); perr != nil {
			return perr
		}
		s.markDone(ctx, env.EventID)
		return nil
	case errors.As(err, &stockErr):
		if rerr := s.reject(ctx, p.OrderID, env.TraceID, []orders.StockRejectedDetail{{
			ProductID: stockErr.ProductID,
			Required:  stockErr.Requested,
			Available: stockErr.Available,
		}}, "OUT_OF_STOCK"); rerr != nil {
			return rerr
		}
		s.markDone(ctx, env.EventID)
		return nil
	case errors.As(err, &prodErr):
		if rerr := s.reject(ctx, p.OrderID, env.TraceID, []orders.StockRejectedDetail{{ProductID: prodErr.ProductID}}, "PRODUCT_GONE"); rerr != nil {
			return rerr
		}
		s.markDone(ctx, env.EventID)
		return nil
	default:
		return err // infra failure, consumer retries
	}
}

func (s *Service) markDone(ctx context.Context, eventID string) {
	if s.Dedup == nil {
		return
	}
	if err := s.Dedup.Mark(ctx, eventID); err != nil {
		s.log().Warn("dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

// buildUpdates re-reads snapshots so NewQuantity reflects current stock.
func (s *Service) buildUpdates(ctx context.Context, items []orders.ItemQty) ([]orders.QuantityUpdate, string, error) {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	snaps, err := s.Catalog.FindAllByID(ctx, ids)
	if err != nil {
		return nil, "", err
	}
	byID := make(map[string]orders.ProductSnapshot, len(snaps))
	for _, snap := range snaps {
		byID[snap.ID] = snap
	}

	updates := make([]orders.QuantityUpdate, 0, len(items))
	for _, it := range items {
		snap, ok := byID[it.ProductID]
		if !ok {
			return nil, it.ProductID, nil
		}
		updates = append(updates, orders.QuantityUpdate{
			ProductID:   it.ProductID,
			NewQuantity: snap.Available - it.Qty,
			Decrement:   it.Qty,
		})
	}
	return updates, "", nil
}

func (s *Service) reject(ctx context.Context, orderID, trace string, details []orders.StockRejectedDetail, reason string) error {
	if err := s.Orders.SetStatus(ctx, orderID, orders.StatusFailed); err != nil {
		s.log().Warn("status update failed", zap.String("order_id", orderID), zap.Error(err))
	}
	s.cacheStatus(ctx, orderID, orders.StatusFailed)

	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockRejected,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload: kafkax.MustMarshal(orders.StockRejectedPayload{
			OrderID: orderID, Reason: reason, Details: details,
		}),
	}
	s.ProducerReject.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockRejected)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

func (s *Service) publishAdjusted(ctx context.Context, orderID string, items []orders.ItemQty, trace string) error {
	_ = ctx
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockAdjusted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       trace,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.StockAdjustedPayload{OrderID: orderID, Items: items}),
	}
	s.ProducerOK.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockAdjusted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(st)})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}
