package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	// GetForUpdate loads the order and locks it for the enclosing transaction.
	GetForUpdate(ctx context.Context, orderID string) (*Order, error)
	// UpdateStatus writes the new statuses only while the stored status is
	// still from; otherwise it reports ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, orderID string, from, to Status, payment PaymentStatus) (time.Time, error)
	ListByUser(ctx context.Context, userID string, page Page) ([]Order, int, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

const (
	orderColumns         = `id, user_id, order_code, total_amount, shipping_fee, shipping_address, notes, status, payment_status, created_at, updated_at`
	codeUniqueConstraint = "orders_order_code_key"
)

type PostgresRepository struct {
	pool db.Executor
}

func NewPostgresRepository(pool db.Executor) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, o *Order) error {
	conn := db.Conn(ctx, r.pool)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	err := conn.QueryRow(ctx, `
		INSERT INTO orders (id, user_id, order_code, total_amount, shipping_fee, shipping_address, notes, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, o.ID, o.UserID, o.OrderCode, o.TotalAmount, o.ShippingFee, o.ShippingAddress, o.Notes,
		string(o.Status), string(o.PaymentStatus)).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, codeUniqueConstraint) {
			return fmt.Errorf("%w: duplicate order code %s", db.ErrConflict, o.OrderCode)
		}
		return db.Classify(fmt.Errorf("insert order: %w", err))
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		it.OrderID = o.ID
		if _, err := conn.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price, total_price, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ID, it.OrderID, it.ProductID, it.Quantity, it.Price, it.TotalPrice, i); err != nil {
			return db.Classify(fmt.Errorf("insert order item: %w", err))
		}
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, orderID string) (*Order, error) {
	return r.get(ctx, orderID, "")
}

func (r *PostgresRepository) GetForUpdate(ctx context.Context, orderID string) (*Order, error) {
	return r.get(ctx, orderID, " FOR UPDATE")
}

func (r *PostgresRepository) get(ctx context.Context, orderID, lock string) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrNotFound
	}
	conn := db.Conn(ctx, r.pool)

	o, err := scanOrder(conn.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`+lock, orderID))
	if err != nil {
		return nil, err
	}

	items, err := r.itemsFor(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return o, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, orderID string, from, to Status, payment PaymentStatus) (time.Time, error) {
	var updatedAt time.Time
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE orders
		SET status=$3, payment_status=$4, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING updated_at
	`, orderID, string(from), string(to), string(payment)).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, fmt.Errorf("%w: order %s is no longer %s", ErrInvalidStatusTransition, orderID, from)
		}
		return time.Time{}, db.Classify(fmt.Errorf("update order status: %w", err))
	}
	return updatedAt, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string, page Page) ([]Order, int, error) {
	return r.list(ctx, `user_id=$1`, userID, page)
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	return r.list(ctx, `($1 = '' OR status=$1)`, string(filter.Status), filter.Page)
}

func (r *PostgresRepository) list(ctx context.Context, where string, arg any, page Page) ([]Order, int, error) {
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, arg).Scan(&total); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("count orders: %w", err))
	}

	rows, err := conn.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, arg, page.Size, page.Offset())
	if err != nil {
		return nil, 0, db.Classify(fmt.Errorf("query orders: %w", err))
	}

	orders := []Order{}
	ids := []string{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, db.Classify(fmt.Errorf("iterate orders: %w", err))
	}
	if len(ids) == 0 {
		return orders, total, nil
	}

	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []Item{}
		}
	}
	return orders, total, nil
}

func (r *PostgresRepository) itemsFor(ctx context.Context, orderIDs []string) (map[string][]Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, order_id, product_id, quantity, price, total_price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`, orderIDs)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("query order items: %w", err))
	}
	defer rows.Close()

	out := make(map[string][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price, &it.TotalPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("iterate order items: %w", err))
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o             Order
		status, payst string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.OrderCode, &o.TotalAmount, &o.ShippingFee, &o.ShippingAddress,
		&o.Notes, &status, &payst, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("scan order: %w", err))
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payst)
	return &o, nil
}
