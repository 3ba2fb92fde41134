package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
)

type Carts struct {
	s *Store
}

func (r *Carts) GetOrCreate(ctx context.Context, userID string) (*cart.Cart, error) {
	var c *cart.Cart
	err := r.s.run(ctx, func(st *state) error {
		id, ok := st.cartByUser[userID]
		if !ok {
			now := r.s.now()
			id = uuid.NewString()
			st.carts[id] = cart.Cart{ID: id, UserID: userID, Items: []cart.Item{}, TotalPrice: decimal.Zero, CreatedAt: now, UpdatedAt: now}
			st.cartByUser[userID] = id
		}
		c = st.loadCart(id)
		return nil
	})
	return c, err
}

func (r *Carts) GetByUser(ctx context.Context, userID string) (*cart.Cart, error) {
	var c *cart.Cart
	err := r.s.run(ctx, func(st *state) error {
		id, ok := st.cartByUser[userID]
		if !ok {
			return cart.ErrNotFound
		}
		c = st.loadCart(id)
		return nil
	})
	return c, err
}

func (r *Carts) ListItems(ctx context.Context, cartID string) ([]cart.Item, error) {
	var items []cart.Item
	err := r.s.run(ctx, func(st *state) error {
		items = st.cartItems(cartID)
		return nil
	})
	return items, err
}

func (r *Carts) InsertItem(ctx context.Context, item cart.Item) (cart.Item, error) {
	if item.Quantity < 1 {
		return cart.Item{}, cart.ErrInvalidQuantity
	}
	err := r.s.run(ctx, func(st *state) error {
		if _, ok := st.carts[item.CartID]; !ok {
			return cart.ErrNotFound
		}
		if _, ok := st.products[item.ProductID]; !ok {
			return inventory.ErrProductNotFound
		}
		for _, existing := range st.items {
			if existing.CartID == item.CartID && existing.ProductID == item.ProductID {
				return fmt.Errorf("%w: cart %s already holds product %s", db.ErrConflict, item.CartID, item.ProductID)
			}
		}
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		item.CreatedAt = r.s.now()
		item.UpdatedAt = item.CreatedAt
		st.items[item.ID] = item
		st.nextRank(item.ID)
		return nil
	})
	if err != nil {
		return cart.Item{}, err
	}
	return item, nil
}

func (r *Carts) UpdateItemQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity < 1 {
		return cart.ErrInvalidQuantity
	}
	return r.s.run(ctx, func(st *state) error {
		it, ok := st.items[itemID]
		if !ok {
			return cart.ErrItemNotFound
		}
		it.Quantity = quantity
		it.UpdatedAt = r.s.now()
		st.items[itemID] = it
		return nil
	})
}

func (r *Carts) DeleteItem(ctx context.Context, itemID string) error {
	return r.s.run(ctx, func(st *state) error {
		if _, ok := st.items[itemID]; !ok {
			return cart.ErrItemNotFound
		}
		delete(st.items, itemID)
		return nil
	})
}

func (r *Carts) DeleteItems(ctx context.Context, cartID string) error {
	return r.s.run(ctx, func(st *state) error {
		for id, it := range st.items {
			if it.CartID == cartID {
				delete(st.items, id)
			}
		}
		return nil
	})
}

func (r *Carts) SaveTotals(ctx context.Context, c *cart.Cart) error {
	if c == nil {
		return errors.New("memory: nil cart")
	}
	return r.s.run(ctx, func(st *state) error {
		row, ok := st.carts[c.ID]
		if !ok {
			return cart.ErrNotFound
		}
		row.TotalItems = c.TotalItems
		row.TotalPrice = c.TotalPrice
		row.UpdatedAt = r.s.now()
		st.carts[c.ID] = row
		c.UpdatedAt = row.UpdatedAt
		return nil
	})
}

func (st *state) loadCart(id string) *cart.Cart {
	c := st.carts[id]
	c.Items = st.cartItems(id)
	return &c
}

func (st *state) cartItems(cartID string) []cart.Item {
	items := []cart.Item{}
	for _, it := range st.items {
		if it.CartID == cartID {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return st.rank[items[i].ID] < st.rank[items[j].ID]
	})
	return items
}
