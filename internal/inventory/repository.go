package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

const productColumns = `id, name, price, stock, sold, status, updated_at`

type PostgresLedger struct {
	pool db.Executor
}

func NewPostgresLedger(pool db.Executor) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (r *PostgresLedger) GetProduct(ctx context.Context, productID string) (Product, error) {
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID)
	return scanProduct(row)
}

func (r *PostgresLedger) UpsertProduct(ctx context.Context, p Product) (Product, error) {
	if err := p.Validate(); err != nil {
		return Product{}, err
	}
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO products (id, name, price, stock, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, price = EXCLUDED.price, status = EXCLUDED.status, updated_at = now()
		RETURNING `+productColumns,
		p.ID, p.Name, p.Price, p.Stock, string(p.Status))
	return scanProduct(row)
}

func (r *PostgresLedger) Reserve(ctx context.Context, productID string, quantity int) error {
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	conn := db.Conn(ctx, r.pool)

	tag, err := conn.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, sold = sold + $2, updated_at = now()
		WHERE id = $1 AND stock >= $2
	`, productID, quantity)
	if err != nil {
		return db.Classify(fmt.Errorf("reserve stock: %w", err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var available int
	if err := conn.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&available); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrProductNotFound
		}
		return db.Classify(fmt.Errorf("read stock: %w", err))
	}
	return &InsufficientStockError{ProductID: productID, Requested: quantity, Available: available}
}

func (r *PostgresLedger) Release(ctx context.Context, productID string, quantity int) error {
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE products
		SET stock = stock + $2, sold = GREATEST(sold - $2, 0), updated_at = now()
		WHERE id = $1
	`, productID, quantity)
	if err != nil {
		return db.Classify(fmt.Errorf("release stock: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *PostgresLedger) Restock(ctx context.Context, productID string, quantity int) (Product, error) {
	if !ValidQuantity(quantity) {
		return Product{}, ErrInvalidQuantity
	}
	row := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		productID, quantity)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p      Product
		status string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Sold, &status, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, db.Classify(fmt.Errorf("scan product: %w", err))
	}
	p.Status = ProductStatus(status)
	return p, nil
}
