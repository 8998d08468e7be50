package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/ariefcatur/go-commerce-orders.git/internal/kafka"
	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
	"github.com/ariefcatur/go-commerce-orders.git/internal/redisx"
)

// OrderCreator is the core operation this handler fronts.
type OrderCreator interface {
	Create(ctx context.Context, customerID string, items []orders.ItemRequest) (*orders.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*orders.Order, error)
	GetStatus(ctx context.Context, orderID string) (orders.Status, error)
}

type ProductLister interface {
	List(ctx context.Context) ([]orders.Product, error)
}

type OrdersHandler struct {
	Creator  OrderCreator
	Orders   OrderReader
	Products ProductLister

	// Producer publishes OrderCreated; Reconcile publishes StockReconcileNeeded.
	// Both optional, like Redis: nil disables the concern.
	Producer  *kafkax.Producer
	Reconcile *kafkax.Producer
	Redis     *redis.Client
	Service   string
	Log       *zap.Logger
}

type CreateOrderReq struct {
	CustomerID string               `json:"customer_id"`
	Items      []orders.ItemRequest `json:"items"`
}

type LineItemResp struct {
	ID         string `json:"id"`
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int    `json:"price_cents"`
}

type OrderResp struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Status     string         `json:"status"`
	TotalCents int            `json:"total_cents"`
	Items      []LineItemResp `json:"items"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Creator.Create(ctx, req.CustomerID, req.Items)
	if err != nil {
		h.writeCreateError(ctx, w, r, err)
		return
	}

	h.cacheStatus(ctx, order.ID, order.Status)
	h.publishCreated(r, order)

	writeJSON(w, http.StatusCreated, toOrderResp(order))
}

func (h *OrdersHandler) writeCreateError(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	var (
		customerErr  *orders.CustomerNotFoundError
		productErr   *orders.ProductNotFoundError
		stockErr     *orders.InsufficientStockError
		qtyErr       *orders.InvalidQuantityError
		reconcileErr *orders.ReconciliationError
	)
	switch {
	// Checked first: a reconciliation error may wrap an insufficient-stock
	// cause from the write-time re-check, but the order already stands.
	case errors.As(err, &reconcileErr):
		h.cacheStatus(ctx, reconcileErr.OrderID, orders.StatusReconciling)
		h.publishReconcile(r, reconcileErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":    "order created but stock update pending",
			"order_id": reconcileErr.OrderID,
		})
	case errors.As(err, &customerErr), errors.As(err, &productErr), errors.Is(err, orders.ErrNoProducts):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &qtyErr), errors.Is(err, orders.ErrEmptyRequest), errors.Is(err, orders.ErrCustomerRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		if h.Log != nil {
			h.Log.Error("create order failed", zap.Error(err))
		}
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *OrdersHandler) publishCreated(r *http.Request, order *orders.Order) {
	if h.Producer == nil {
		return
	}
	items := make([]orders.ItemPrice, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, orders.ItemPrice{ProductID: li.ProductID, Qty: li.Qty, PriceCents: li.PriceCents})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: order.ID,
		Payload: kafkax.MustMarshal(orders.OrderCreatedPayload{
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Items:      items,
			TotalCents: order.TotalCents,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(order.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishReconcile(r *http.Request, rerr *orders.ReconciliationError) {
	if h.Reconcile == nil {
		return
	}
	order, err := h.Orders.Get(r.Context(), rerr.OrderID)
	if err != nil {
		if h.Log != nil {
			h.Log.Error("load order for reconcile event failed",
				zap.String("order_id", rerr.OrderID), zap.Error(err))
		}
		return
	}
	items := make([]orders.ItemQty, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, orders.ItemQty{ProductID: li.ProductID, Qty: li.Qty})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventStockReconcileNeeded,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: rerr.OrderID,
		Payload: kafkax.MustMarshal(orders.StockReconcilePayload{
			OrderID: rerr.OrderID,
			Items:   items,
			Reason:  rerr.Err.Error(),
		}),
	}
	h.Reconcile.Publish(orders.PartitionKey(rerr.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventStockReconcileNeeded)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]string{"status": string(st)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	order, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResp(order))
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// cache first
	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	st, err := h.Orders.GetStatus(ctx, orderID)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.cacheStatus(ctx, orderID, st)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(st)})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Products.List(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func toOrderResp(order *orders.Order) OrderResp {
	items := make([]LineItemResp, 0, len(order.Items))
	for _, li := range order.Items {
		items = append(items, LineItemResp{
			ID:         li.ID,
			ProductID:  li.ProductID,
			Qty:        li.Qty,
			PriceCents: li.PriceCents,
		})
	}
	return OrderResp{
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		TotalCents: order.TotalCents,
		Items:      items,
	}
}
