package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

// Repository persists carts and their items. Loads by user lock the cart row
// for the rest of the enclosing transaction.
type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	GetByUser(ctx context.Context, userID string) (*Cart, error)
	ListItems(ctx context.Context, cartID string) ([]Item, error)
	InsertItem(ctx context.Context, item Item) (Item, error)
	UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error
	DeleteItem(ctx context.Context, itemID string) error
	DeleteItems(ctx context.Context, cartID string) error
	SaveTotals(ctx context.Context, c *Cart) error
}

const itemUniqueConstraint = "cart_items_cart_id_product_id_key"

type PostgresRepository struct {
	pool db.Executor
}

func NewPostgresRepository(pool db.Executor) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.NewString(), userID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("insert cart: %w", err))
	}
	return r.GetByUser(ctx, userID)
}

func (r *PostgresRepository) GetByUser(ctx context.Context, userID string) (*Cart, error) {
	c := &Cart{}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, user_id, total_items, total_price, created_at, updated_at
		FROM carts
		WHERE user_id=$1
		FOR UPDATE
	`, userID).Scan(&c.ID, &c.UserID, &c.TotalItems, &c.TotalPrice, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, db.Classify(fmt.Errorf("select cart: %w", err))
	}

	c.Items, err = r.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) ListItems(ctx context.Context, cartID string) ([]Item, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, cart_id, product_id, quantity, price, created_at, updated_at
		FROM cart_items
		WHERE cart_id=$1
		ORDER BY created_at, id
	`, cartID)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("query cart items: %w", err))
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.ProductID, &it.Quantity, &it.Price, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("iterate cart items: %w", err))
	}
	return items, nil
}

func (r *PostgresRepository) InsertItem(ctx context.Context, item Item) (Item, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, item.ID, item.CartID, item.ProductID, item.Quantity, item.Price).Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, itemUniqueConstraint) {
			return Item{}, fmt.Errorf("%w: %w", db.ErrConflict, err)
		}
		return Item{}, db.Classify(fmt.Errorf("insert cart item: %w", err))
	}
	return item, nil
}

func (r *PostgresRepository) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return ErrItemNotFound
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE cart_items SET quantity=$2, updated_at=now() WHERE id=$1
	`, itemID, quantity)
	if err != nil {
		return db.Classify(fmt.Errorf("update cart item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteItem(ctx context.Context, itemID string) error {
	if _, err := uuid.Parse(itemID); err != nil {
		return ErrItemNotFound
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID)
	if err != nil {
		return db.Classify(fmt.Errorf("delete cart item: %w", err))
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteItems(ctx context.Context, cartID string) error {
	if _, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID); err != nil {
		return db.Classify(fmt.Errorf("clear cart items: %w", err))
	}
	return nil
}

func (r *PostgresRepository) SaveTotals(ctx context.Context, c *Cart) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE carts
		SET total_items=$2, total_price=$3, updated_at=now()
		WHERE id=$1
		RETURNING updated_at
	`, c.ID, c.TotalItems, c.TotalPrice).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return db.Classify(fmt.Errorf("save cart totals: %w", err))
	}
	return nil
}
