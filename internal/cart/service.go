package cart

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

// Transactor runs fn as one atomic unit of work.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductLookup resolves live product data for pricing new items.
type ProductLookup interface {
	GetProduct(ctx context.Context, productID string) (inventory.Product, error)
}

type Service struct {
	tx       Transactor
	repo     Repository
	products ProductLookup
	track    *observability.Tracker
}

func NewService(tx Transactor, repo Repository, products ProductLookup, track *observability.Tracker) *Service {
	return &Service{tx: tx, repo: repo, products: products, track: track}
}

// Get returns the user's cart, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (_ *Cart, err error) {
	ctx, end := s.track.Start(ctx, "cart.get", attribute.String("user.id", userID))
	defer end(&err)

	var c *Cart
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err = s.repo.GetOrCreate(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem adds quantity of productID to the cart. An existing line for the
// product keeps its original price and only grows in quantity.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (_ *Cart, err error) {
	ctx, end := s.track.Start(ctx, "cart.add_item",
		attribute.String("user.id", userID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	)
	defer end(&err)

	if !inventory.ValidQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		if existing, ok := c.itemForProduct(productID); ok {
			if existing.Quantity > inventory.MaxQuantity-quantity {
				return ErrInvalidQuantity
			}
			return s.repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity)
		}

		p, err := s.products.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Purchasable() {
			return inventory.ErrProductNotFound
		}

		_, err = s.repo.InsertItem(ctx, Item{
			CartID:    c.ID,
			ProductID: productID,
			Quantity:  quantity,
			Price:     p.Price,
		})
		return err
	})
}

// UpdateItem sets the quantity of an item; quantity <= 0 removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (_ *Cart, err error) {
	ctx, end := s.track.Start(ctx, "cart.update_item",
		attribute.String("user.id", userID),
		attribute.String("cart_item.id", itemID),
		attribute.Int("quantity", quantity),
	)
	defer end(&err)

	if quantity > inventory.MaxQuantity {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		if _, ok := c.item(itemID); !ok {
			return ErrItemNotFound
		}
		if quantity <= 0 {
			return s.repo.DeleteItem(ctx, itemID)
		}
		return s.repo.UpdateItemQuantity(ctx, itemID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (_ *Cart, err error) {
	ctx, end := s.track.Start(ctx, "cart.remove_item",
		attribute.String("user.id", userID),
		attribute.String("cart_item.id", itemID),
	)
	defer end(&err)

	return s.mutate(ctx, userID, func(ctx context.Context, c *Cart) error {
		if _, ok := c.item(itemID); !ok {
			return ErrItemNotFound
		}
		return s.repo.DeleteItem(ctx, itemID)
	})
}

// Clear empties the user's cart and resets its totals.
func (s *Service) Clear(ctx context.Context, userID string) (_ *Cart, err error) {
	ctx, end := s.track.Start(ctx, "cart.clear", attribute.String("user.id", userID))
	defer end(&err)

	var c *Cart
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err = s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		return Empty(ctx, s.repo, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// mutate applies fn to the locked cart and refolds the totals in the same
// transaction.
func (s *Service) mutate(ctx context.Context, userID string, fn func(ctx context.Context, c *Cart) error) (*Cart, error) {
	var c *Cart
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.repo.GetOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if err := fn(ctx, c); err != nil {
			return err
		}

		c.Items, err = s.repo.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		c.Recalculate()
		if c.TotalItems > inventory.MaxQuantity {
			return ErrInvalidQuantity
		}
		return s.repo.SaveTotals(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Emptier is the subset of Repository needed to clear a cart.
type Emptier interface {
	DeleteItems(ctx context.Context, cartID string) error
	SaveTotals(ctx context.Context, c *Cart) error
}

// Empty removes every item of c and zeroes its totals. It must run inside
// the caller's transaction.
func Empty(ctx context.Context, repo Emptier, c *Cart) error {
	if c == nil {
		return errors.New("cart: nil cart")
	}
	if err := repo.DeleteItems(ctx, c.ID); err != nil {
		return fmt.Errorf("clear cart %s: %w", c.ID, err)
	}
	c.Items = []Item{}
	c.Recalculate()
	return repo.SaveTotals(ctx, c)
}
