package inventory

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity out of range")
	ErrInvalidProduct    = errors.New("invalid product")
)

// MaxQuantity is the largest stock level or line quantity the INTEGER
// columns can hold.
const MaxQuantity = math.MaxInt32

// ValidQuantity reports whether q is a usable line or adjustment quantity.
func ValidQuantity(q int) bool {
	return q >= 1 && q <= MaxQuantity
}

type ProductStatus string

const (
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
	ProductDraft    ProductStatus = "draft"
)

func (s ProductStatus) Valid() bool {
	switch s {
	case ProductActive, ProductInactive, ProductDraft:
		return true
	}
	return false
}

// Product is the slice of the catalog entry this service reads and adjusts.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Sold      int             `json:"sold"`
	Status    ProductStatus   `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Purchasable reports whether new cart lines may reference the product.
func (p Product) Purchasable() bool {
	return p.Status == ProductActive
}

func (p Product) Validate() error {
	switch {
	case p.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidProduct)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	case p.Stock < 0, p.Stock > MaxQuantity:
		return fmt.Errorf("%w: stock must be between 0 and %d", ErrInvalidProduct, MaxQuantity)
	case !p.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidProduct, p.Status)
	}
	return nil
}

type Line struct {
	ProductID string
	Quantity  int
}

// InsufficientStockError describes the line that could not be reserved.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
