package order

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event names; the outbox publishes them with a .v1 suffix.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
)

type EventLine struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type PlacedPayload struct {
	OrderID     string          `json:"orderId"`
	OrderCode   string          `json:"orderCode"`
	UserID      string          `json:"userId"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ShippingFee decimal.Decimal `json:"shippingFee"`
	Items       []EventLine     `json:"items"`
	PlacedAt    time.Time       `json:"placedAt"`
}

type CancelledPayload struct {
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	Items       []EventLine `json:"items"`
	CancelledAt time.Time   `json:"cancelledAt"`
}

type StatusChangedPayload struct {
	OrderID           string        `json:"orderId"`
	FromStatus        Status        `json:"fromStatus"`
	ToStatus          Status        `json:"toStatus"`
	FromPaymentStatus PaymentStatus `json:"fromPaymentStatus"`
	ToPaymentStatus   PaymentStatus `json:"toPaymentStatus"`
	ChangedAt         time.Time     `json:"changedAt"`
}

func eventLines(items []Item) []EventLine {
	lines := make([]EventLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, EventLine{ProductID: it.ProductID, Quantity: it.Quantity, Price: it.Price})
	}
	return lines
}
