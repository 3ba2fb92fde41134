package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("cart item not found")
	ErrInvalidQuantity = errors.New("quantity out of range")
)

// Item is one product line. Price is the unit price captured when the
// product was first added and is never re-synced.
type Item struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cartId"`
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Cart struct {
	ID         string          `json:"id"`
	UserID     string          `json:"userId"`
	Items      []Item          `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Totals folds the item list into the cached cart totals.
func Totals(items []Item) (totalItems int, totalPrice decimal.Decimal) {
	totalPrice = decimal.Zero
	for _, it := range items {
		totalItems += it.Quantity
		totalPrice = totalPrice.Add(it.Subtotal())
	}
	return totalItems, totalPrice
}

// Recalculate refreshes TotalItems and TotalPrice from Items.
func (c *Cart) Recalculate() {
	c.TotalItems, c.TotalPrice = Totals(c.Items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Lines returns the stock lines the cart would consume at checkout.
func (c *Cart) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

func (c *Cart) item(itemID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return Item{}, false
}

func (c *Cart) itemForProduct(productID string) (Item, bool) {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it, true
		}
	}
	return Item{}, false
}
