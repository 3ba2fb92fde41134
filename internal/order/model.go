package order

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
)

var (
	ErrNotFound                = errors.New("order not found")
	ErrCartEmpty               = errors.New("cart is empty")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrInvalidInput            = errors.New("invalid input")
)

// Item is the priced, quantity-fixed record of one purchased line.
type Item struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"orderId"`
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"userId"`
	OrderCode       string          `json:"orderCode"`
	Items           []Item          `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	ShippingAddress string          `json:"shippingAddress"`
	Notes           string          `json:"notes"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func (o *Order) Lines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.Line{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines
}

// ItemsTotal sums the line totals.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.TotalPrice)
	}
	return total
}

type CheckoutInput struct {
	UserID          string
	ShippingAddress string
	ShippingFee     decimal.Decimal
	Notes           string
}

func (in CheckoutInput) validate() error {
	switch {
	case in.UserID == "":
		return errors.Join(ErrInvalidInput, errors.New("user id is required"))
	case strings.TrimSpace(in.ShippingAddress) == "":
		return errors.Join(ErrInvalidInput, errors.New("shipping address is required"))
	case in.ShippingFee.IsNegative():
		return errors.Join(ErrInvalidInput, errors.New("shipping fee must not be negative"))
	}
	return nil
}

type StatusUpdate struct {
	Status        *Status
	PaymentStatus *PaymentStatus
}

// Pagination carries the listing defaults.
type Pagination struct {
	DefaultSize int
	MaxSize     int
}

type Page struct {
	Number int
	Size   int
}

func (p Pagination) Normalize(pg Page) Page {
	if pg.Number < 1 {
		pg.Number = 1
	}
	if pg.Size < 1 {
		pg.Size = p.DefaultSize
	}
	if p.MaxSize > 0 && pg.Size > p.MaxSize {
		pg.Size = p.MaxSize
	}
	// Keep Offset within int32; pages that far out are empty anyway.
	if pg.Size > 0 && pg.Number > math.MaxInt32/pg.Size+1 {
		pg.Number = math.MaxInt32/pg.Size + 1
	}
	return pg
}

func (pg Page) Offset() int {
	return (pg.Number - 1) * pg.Size
}

type ListFilter struct {
	Page   Page
	Status Status
}

type PageInfo struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type List struct {
	Orders     []Order  `json:"orders"`
	Pagination PageInfo `json:"pagination"`
}

func newList(orders []Order, total int, pg Page) List {
	if orders == nil {
		orders = []Order{}
	}
	pages := 0
	if pg.Size > 0 {
		pages = (total + pg.Size - 1) / pg.Size
	}
	return List{
		Orders:     orders,
		Pagination: PageInfo{Page: pg.Number, Limit: pg.Size, Total: total, TotalPages: pages},
	}
}
