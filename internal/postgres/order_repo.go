package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type OrderRepo struct{ DB *pgxpool.Pool }

// Create persists the order and its line items in one tx and returns the
// aggregate with generated ids and the db-side created_at.
func (r *OrderRepo) Create(ctx context.Context, o orders.NewOrder) (*orders.Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	out := &orders.Order{
		ID:         uuid.NewString(),
		CustomerID: o.CustomerID,
		Status:     o.Status,
	}
	for _, li := range o.Items {
		out.TotalCents += li.PriceCents * li.Qty
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders(id, customer_id, status, total_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, out.ID, out.CustomerID, string(out.Status), out.TotalCents).Scan(&out.CreatedAt)
	if err != nil {
		return nil, err
	}

	out.Items = make([]orders.LineItem, 0, len(o.Items))
	for i, li := range o.Items {
		item := orders.LineItem{
			ID:         uuid.NewString(),
			OrderID:    out.ID,
			ProductID:  li.ProductID,
			Qty:        li.Qty,
			PriceCents: li.PriceCents,
		}
		// position keeps line items in request order on read-back
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, qty, price_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.OrderID, item.ProductID, item.Qty, item.PriceCents, i,
		); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *OrderRepo) SetStatus(ctx context.Context, orderID string, st orders.Status) error {
	var current string
	if err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&current); err != nil {
		return err
	}
	if !orders.CanTransition(orders.Status(current), st) {
		return fmt.Errorf("postgres: order %s: cannot transition %s -> %s", orderID, current, st)
	}
	ct, err := r.DB.Exec(ctx, `UPDATE orders SET status=$2, updated_at=now() WHERE id=$1 AND status=$3`,
		orderID, string(st), current)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("postgres: order %s: concurrent status change", orderID)
	}
	return nil
}

// Get loads the order aggregate including line items.
func (r *OrderRepo) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	var o orders.Order
	var status string
	err := r.DB.QueryRow(ctx, `SELECT id, customer_id, status, total_cents, created_at FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.CustomerID, &status, &o.TotalCents, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = orders.Status(status)

	rows, err := r.DB.Query(ctx, `SELECT id, order_id, product_id, qty, price_cents
                                FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var li orders.LineItem
		if err := rows.Scan(&li.ID, &li.OrderID, &li.ProductID, &li.Qty, &li.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, li)
	}
	return &o, rows.Err()
}

func (r *OrderRepo) GetStatus(ctx context.Context, orderID string) (orders.Status, error) {
	var s string
	err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1`, orderID).Scan(&s)
	if err != nil {
		return "", err
	}
	return orders.Status(s), nil
}
