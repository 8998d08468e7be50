package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type ProductRepo struct{ DB *pgxpool.Pool }

// FindAllByID returns the snapshots for the subset of ids that exist.
func (r *ProductRepo) FindAllByID(ctx context.Context, ids []string) ([]orders.ProductSnapshot, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(ids))
	params := ""
	for i, id := range ids {
		if i > 0 {
			params += ","
		}
		params += fmt.Sprintf("$%d", i+1)
		args = append(args, id)
	}

	rows, err := r.DB.Query(ctx, `SELECT id, price_cents, stock FROM products WHERE id IN (`+params+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.ProductSnapshot
	for rows.Next() {
		var s orders.ProductSnapshot
		if err := rows.Scan(&s.ID, &s.PriceCents, &s.Available); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// lockOrder copies updates sorted by product id so concurrent transactions
// acquire row locks in the same order and cannot deadlock each other.
func lockOrder(updates []orders.QuantityUpdate) []orders.QuantityUpdate {
	out := append([]orders.QuantityUpdate(nil), updates...)
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// UpdateQuantities applies all decrements in one tx, re-checking stock under
// a row lock. A short row rejects the whole batch (rollback via defer) with
// *orders.InsufficientStockError so no product ever goes negative.
func (r *ProductRepo) UpdateQuantities(ctx context.Context, updates []orders.QuantityUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, u := range lockOrder(updates) {
		var stock int
		if err := tx.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1 FOR UPDATE`, u.ProductID).Scan(&stock); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return &orders.ProductNotFoundError{ProductID: u.ProductID}
			}
			return err
		}
		if stock < u.Decrement {
			return &orders.InsufficientStockError{
				ProductID: u.ProductID,
				Requested: u.Decrement,
				Available: stock,
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2, updated_at = now() WHERE id=$1`,
			u.ProductID, u.Decrement); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ProductRepo) List(ctx context.Context) ([]orders.Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, stock, price_cents, created_at, updated_at
                                FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Stock, &p.PriceCents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
