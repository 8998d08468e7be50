package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-orders.git/internal/orders"
)

type CustomerRepo struct{ DB *pgxpool.Pool }

// FindByID maps an unknown id to (nil, nil): absence is a normal result.
func (r *CustomerRepo) FindByID(ctx context.Context, id string) (*orders.Customer, error) {
	var c orders.Customer
	err := r.DB.QueryRow(ctx, `SELECT id, name, email, created_at FROM customers WHERE id=$1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
