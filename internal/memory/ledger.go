package memory

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
)

type Ledger struct {
	s *Store
}

func (l *Ledger) GetProduct(ctx context.Context, productID string) (inventory.Product, error) {
	var p inventory.Product
	err := l.s.run(ctx, func(st *state) error {
		var ok bool
		if p, ok = st.products[productID]; !ok {
			return inventory.ErrProductNotFound
		}
		return nil
	})
	return p, err
}

func (l *Ledger) UpsertProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	if err := p.Validate(); err != nil {
		return inventory.Product{}, err
	}
	err := l.s.run(ctx, func(st *state) error {
		if existing, ok := st.products[p.ID]; ok {
			p.Stock, p.Sold = existing.Stock, existing.Sold
		} else {
			p.Sold = 0
		}
		p.UpdatedAt = l.s.now()
		st.products[p.ID] = p
		return nil
	})
	return p, err
}

func (l *Ledger) Reserve(ctx context.Context, productID string, quantity int) error {
	if !inventory.ValidQuantity(quantity) {
		return inventory.ErrInvalidQuantity
	}
	return l.s.run(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return inventory.ErrProductNotFound
		}
		if p.Stock < quantity {
			return &inventory.InsufficientStockError{ProductID: productID, Requested: quantity, Available: p.Stock}
		}
		p.Stock -= quantity
		p.Sold += quantity
		p.UpdatedAt = l.s.now()
		st.products[productID] = p
		return nil
	})
}

func (l *Ledger) Release(ctx context.Context, productID string, quantity int) error {
	if !inventory.ValidQuantity(quantity) {
		return inventory.ErrInvalidQuantity
	}
	return l.s.run(ctx, func(st *state) error {
		p, ok := st.products[productID]
		if !ok {
			return inventory.ErrProductNotFound
		}
		p.Stock += quantity
		p.Sold = max(p.Sold-quantity, 0)
		p.UpdatedAt = l.s.now()
		st.products[productID] = p
		return nil
	})
}

func (l *Ledger) Restock(ctx context.Context, productID string, quantity int) (inventory.Product, error) {
	if !inventory.ValidQuantity(quantity) {
		return inventory.Product{}, inventory.ErrInvalidQuantity
	}
	var p inventory.Product
	err := l.s.run(ctx, func(st *state) error {
		var ok bool
		if p, ok = st.products[productID]; !ok {
			return inventory.ErrProductNotFound
		}
		if p.Stock > inventory.MaxQuantity-quantity {
			return fmt.Errorf("%w: restock %s", db.ErrOutOfRange, productID)
		}
		p.Stock += quantity
		p.UpdatedAt = l.s.now()
		st.products[productID] = p
		return nil
	})
	return p, err
}
