package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Carts is the cart storage checkout reads from and empties.
type Carts interface {
	GetByUser(ctx context.Context, userID string) (*cart.Cart, error)
	cart.Emptier
}

// Outbox records an event in the caller's transaction.
type Outbox interface {
	Record(ctx context.Context, eventName, partitionKey string, payload any) error
}

type Deps struct {
	Tx         Transactor
	Orders     Repository
	Carts      Carts
	Ledger     inventory.Ledger
	Outbox     Outbox
	Codes      *CodeGenerator
	Pagination Pagination
	Tracker    *observability.Tracker
	Metrics    *observability.Metrics
}

type Service struct {
	tx         Transactor
	orders     Repository
	carts      Carts
	ledger     inventory.Ledger
	outbox     Outbox
	codes      *CodeGenerator
	pagination Pagination
	track      *observability.Tracker
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewService(d Deps) *Service {
	if d.Codes == nil {
		d.Codes = NewCodeGenerator()
	}
	return &Service{
		tx:         d.Tx,
		orders:     d.Orders,
		carts:      d.Carts,
		ledger:     d.Ledger,
		outbox:     d.Outbox,
		codes:      d.Codes,
		pagination: d.Pagination,
		track:      d.Tracker,
		metrics:    d.Metrics,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Checkout turns the user's cart into a pending order. Reserving stock for
// every line, persisting the order and emptying the cart commit together or
// not at all.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (_ *Order, err error) {
	ctx, end := s.track.Start(ctx, "order.checkout", attribute.String("user.id", in.UserID))
	defer end(&err)

	if err := in.validate(); err != nil {
		return nil, err
	}

	var placed *Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		c, err := s.carts.GetByUser(ctx, in.UserID)
		if err != nil {
			return err
		}
		if c.IsEmpty() {
			return ErrCartEmpty
		}

		code, err := s.codes.Next()
		if err != nil {
			return err
		}

		o := s.newOrder(in, code, c)
		if err := s.orders.Create(ctx, o); err != nil {
			return err
		}
		if err := inventory.ReserveAll(ctx, s.ledger, o.Lines()); err != nil {
			return err
		}
		if err := cart.Empty(ctx, s.carts, c); err != nil {
			return err
		}

		if err := s.outbox.Record(ctx, EventOrderPlaced, o.ID, PlacedPayload{
			OrderID:     o.ID,
			OrderCode:   o.OrderCode,
			UserID:      o.UserID,
			TotalAmount: o.TotalAmount,
			ShippingFee: o.ShippingFee,
			Items:       eventLines(o.Items),
			PlacedAt:    o.CreatedAt,
		}); err != nil {
			return err
		}

		placed = o
		return nil
	})
	if err != nil {
		s.countRejection(err)
		return nil, err
	}
	return placed, nil
}

func (s *Service) newOrder(in CheckoutInput, code string, c *cart.Cart) *Order {
	o := &Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		OrderCode:       code,
		ShippingFee:     in.ShippingFee,
		ShippingAddress: in.ShippingAddress,
		Notes:           in.Notes,
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Items:           make([]Item, 0, len(c.Items)),
	}
	for _, ci := range c.Items {
		o.Items = append(o.Items, Item{
			ID:         uuid.NewString(),
			OrderID:    o.ID,
			ProductID:  ci.ProductID,
			Quantity:   ci.Quantity,
			Price:      ci.Price,
			TotalPrice: ci.Subtotal(),
		})
	}
	// Equal to the cart's cached TotalPrice; summed from the lines so the
	// order total always matches its own items.
	o.TotalAmount = o.ItemsTotal().Add(in.ShippingFee)
	return o
}

func (s *Service) countRejection(err error) {
	switch {
	case errors.Is(err, inventory.ErrInsufficientStock):
		s.metrics.StockRejected("insufficient_stock")
	case errors.Is(err, inventory.ErrProductNotFound):
		s.metrics.StockRejected("product_not_found")
	}
}

// Cancel reverses the stock effect of a pending order. An empty requesterID
// skips the ownership check.
func (s *Service) Cancel(ctx context.Context, orderID, requesterID string) (_ *Order, err error) {
	ctx, end := s.track.Start(ctx, "order.cancel", attribute.String("order.id", orderID))
	defer end(&err)

	var cancelled *Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if requesterID != "" && o.UserID != requesterID {
			return ErrNotFound
		}
		if err := s.cancelLocked(ctx, o); err != nil {
			return err
		}
		cancelled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

// cancelLocked must run in the transaction holding the order lock.
func (s *Service) cancelLocked(ctx context.Context, o *Order) error {
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return fmt.Errorf("%w: cannot cancel a %s order", ErrInvalidStatusTransition, o.Status)
	}

	from := o.Status
	updatedAt, err := s.orders.UpdateStatus(ctx, o.ID, from, StatusCancelled, o.PaymentStatus)
	if err != nil {
		return err
	}
	if err := inventory.ReleaseAll(ctx, s.ledger, o.Lines()); err != nil {
		return err
	}
	o.Status = StatusCancelled
	o.UpdatedAt = updatedAt

	return s.outbox.Record(ctx, EventOrderCancelled, o.ID, CancelledPayload{
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       eventLines(o.Items),
		CancelledAt: s.now(),
	})
}

// UpdateStatus applies an administrative status and/or payment status move.
// Moving to cancelled takes the stock-restoring path.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, upd StatusUpdate) (_ *Order, err error) {
	ctx, end := s.track.Start(ctx, "order.update_status", attribute.String("order.id", orderID))
	defer end(&err)

	if upd.Status == nil && upd.PaymentStatus == nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("status or paymentStatus is required"))
	}

	var updated *Order
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(ctx, o, upd); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordPayment stores a payment outcome reported by the payment service.
func (s *Service) RecordPayment(ctx context.Context, orderID string, status PaymentStatus) (*Order, error) {
	return s.UpdateStatus(ctx, orderID, StatusUpdate{PaymentStatus: &status})
}

func (s *Service) applyUpdate(ctx context.Context, o *Order, upd StatusUpdate) error {
	fromStatus, fromPayment := o.Status, o.PaymentStatus
	toStatus, toPayment := fromStatus, fromPayment
	if upd.Status != nil {
		toStatus = *upd.Status
	}
	if upd.PaymentStatus != nil {
		toPayment = *upd.PaymentStatus
	}

	if toStatus != fromStatus && !fromStatus.CanTransitionTo(toStatus) {
		return fmt.Errorf("%w: order %s -> %s", ErrInvalidStatusTransition, fromStatus, toStatus)
	}
	if toPayment != fromPayment && !fromPayment.CanTransitionTo(toPayment) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidStatusTransition, fromPayment, toPayment)
	}
	if toStatus == fromStatus && toPayment == fromPayment {
		return nil
	}

	if toStatus == StatusCancelled {
		o.PaymentStatus = toPayment
		if err := s.cancelLocked(ctx, o); err != nil {
			return err
		}
	} else {
		updatedAt, err := s.orders.UpdateStatus(ctx, o.ID, fromStatus, toStatus, toPayment)
		if err != nil {
			return err
		}
		o.Status, o.PaymentStatus, o.UpdatedAt = toStatus, toPayment, updatedAt
	}

	return s.outbox.Record(ctx, EventOrderStatusChanged, o.ID, StatusChangedPayload{
		OrderID:           o.ID,
		FromStatus:        fromStatus,
		ToStatus:          toStatus,
		FromPaymentStatus: fromPayment,
		ToPaymentStatus:   toPayment,
		ChangedAt:         s.now(),
	})
}

// Get returns an order. A non-empty requesterID must own it.
func (s *Service) Get(ctx context.Context, orderID, requesterID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if requesterID != "" && o.UserID != requesterID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, page Page) (List, error) {
	page = s.pagination.Normalize(page)
	orders, total, err := s.orders.ListByUser(ctx, userID, page)
	if err != nil {
		return List{}, err
	}
	return newList(orders, total, page), nil
}

// ListAll returns every order, newest first, optionally filtered by status.
func (s *Service) ListAll(ctx context.Context, filter ListFilter) (List, error) {
	filter.Page = s.pagination.Normalize(filter.Page)
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return List{}, err
	}
	return newList(orders, total, filter.Page), nil
}
