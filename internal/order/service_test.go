package order_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/memory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

type fixture struct {
	store  *memory.Store
	carts  *cart.Service
	orders *order.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	return &fixture{
		store: store,
		carts: cart.NewService(store, store.Carts(), store.Ledger(), nil),
		orders: order.NewService(order.Deps{
			Tx:         store,
			Orders:     store.Orders(),
			Carts:      store.Carts(),
			Ledger:     store.Ledger(),
			Outbox:     events.NewRecorder(store.Outbox(), store.Sequences(), ""),
			Pagination: order.Pagination{DefaultSize: 20, MaxSize: 100},
		}),
	}
}

func (f *fixture) product(t *testing.T, id string, price string, stock int) {
	t.Helper()
	_, err := f.store.Ledger().UpsertProduct(context.Background(), inventory.Product{
		ID:     id,
		Name:   id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Status: inventory.ProductActive,
	})
	require.NoError(t, err)
}

func (f *fixture) add(t *testing.T, userID, productID string, qty int) {
	t.Helper()
	_, err := f.carts.AddItem(context.Background(), userID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, productID string) inventory.Product {
	t.Helper()
	p, err := f.store.Ledger().GetProduct(context.Background(), productID)
	require.NoError(t, err)
	return p
}

func (f *fixture) pendingEvents(t *testing.T) []events.Record {
	t.Helper()
	recs, err := f.store.Outbox().FetchPending(context.Background(), 100)
	require.NoError(t, err)
	return recs
}

func checkoutInput(userID string) order.CheckoutInput {
	return order.CheckoutInput{
		UserID:          userID,
		ShippingAddress: "1 Main St",
		ShippingFee:     decimal.RequireFromString("4.99"),
	}
}

func TestCheckout_PlacesOrder(t *testing.T) {
	f := newFixture(t)
	f.product(t, "mug", "12.50", 10)
	f.product(t, "tee", "20.00", 5)
	f.add(t, "u1", "mug", 2)
	f.add(t, "u1", "tee", 1)

	o, err := f.orders.Checkout(context.Background(), checkoutInput("u1"))
	require.NoError(t, err)

	assert.Regexp(t, `^ORD-[0-9A-Z]{26}$`, o.OrderCode)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	require.Len(t, o.Items, 2)
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("49.99")), o.TotalAmount.String())
	assert.True(t, o.ItemsTotal().Add(o.ShippingFee).Equal(o.TotalAmount))

	mug := f.stock(t, "mug")
	assert.Equal(t, 8, mug.Stock)
	assert.Equal(t, 2, mug.Sold)
	assert.Equal(t, 4, f.stock(t, "tee").Stock)

	c, err := f.carts.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.True(t, c.TotalPrice.IsZero())

	recs := f.pendingEvents(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "order.placed.v1", recs[0].RoutingKey)
	assert.Equal(t, o.ID, recs[0].PartitionKey)

	var env events.EventEnvelope[order.PlacedPayload]
	require.NoError(t, json.Unmarshal(recs[0].Payload, &env))
	assert.Equal(t, o.OrderCode, env.Payload.OrderCode)
	require.NotNil(t, env.Sequence)
	assert.Equal(t, int64(1), *env.Sequence)
}

func TestCheckout_IsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.product(t, "a", "10", 5)
	f.product(t, "b", "10", 5)
	f.add(t, "u1", "a", 2)
	f.add(t, "u1", "b", 3)

	// stock of b drops below the cart quantity after it was added
	require.NoError(t, f.store.Ledger().Reserve(context.Background(), "b", 4))

	_, err := f.orders.Checkout(context.Background(), checkoutInput("u1"))
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "b", stockErr.ProductID)

	assert.Equal(t, 5, f.stock(t, "a").Stock)
	assert.Equal(t, 0, f.stock(t, "a").Sold)

	list, err := f.orders.ListForUser(context.Background(), "u1", order.Page{})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)

	c, err := f.carts.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
	assert.Equal(t, 5, c.TotalItems)
	assert.Empty(t, f.pendingEvents(t))
}

func TestCheckout_LastUnitGoesToExactlyOneBuyer(t *testing.T) {
	f := newFixture(t)
	f.product(t, "last", "99", 1)
	f.add(t, "u1", "last", 1)
	f.add(t, "u2", "last", 1)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)
	for i, user := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(i int, user string) {
			defer wg.Done()
			_, errs[i] = f.orders.Checkout(context.Background(), checkoutInput(user))
		}(i, user)
	}
	wg.Wait()

	succeeded, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, inventory.ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)

	p := f.stock(t, "last")
	assert.Equal(t, 0, p.Stock)
	assert.Equal(t, 1, p.Sold)
}

func TestCheckout_EmptyAndMissingCart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orders.Checkout(ctx, checkoutInput("ghost"))
	assert.ErrorIs(t, err, cart.ErrNotFound)

	_, err = f.carts.Get(ctx, "u1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = f.orders.Checkout(ctx, checkoutInput("u1"))
		assert.ErrorIs(t, err, order.ErrCartEmpty)
	}
}

func TestCheckout_ValidatesInput(t *testing.T) {
	f := newFixture(t)

	in := checkoutInput("u1")
	in.ShippingAddress = "  "
	_, err := f.orders.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, order.ErrInvalidInput)

	in = checkoutInput("u1")
	in.ShippingFee = decimal.NewFromInt(-1)
	_, err = f.orders.Checkout(context.Background(), in)
	assert.ErrorIs(t, err, order.ErrInvalidInput)
}

func TestCancel_RestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 3)

	o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)
	assert.Equal(t, 7, f.stock(t, "mug").Stock)

	_, err = f.orders.Cancel(ctx, o.ID, "someone-else")
	assert.ErrorIs(t, err, order.ErrNotFound)

	cancelled, err := f.orders.Cancel(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, cancelled.Status)

	mug := f.stock(t, "mug")
	assert.Equal(t, 10, mug.Stock)
	assert.Equal(t, 0, mug.Sold)

	_, err = f.orders.Cancel(ctx, o.ID, "u1")
	assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
	assert.Equal(t, 10, f.stock(t, "mug").Stock)

	recs := f.pendingEvents(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "order.cancelled.v1", recs[1].RoutingKey)
}

func TestCancel_RefusedAfterProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 2)

	o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)

	processing := order.StatusProcessing
	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &processing})
	require.NoError(t, err)

	_, err = f.orders.Cancel(ctx, o.ID, "u1")
	require.ErrorIs(t, err, order.ErrInvalidStatusTransition)

	got, err := f.orders.Get(ctx, o.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, got.Status)
	assert.Equal(t, 8, f.stock(t, "mug").Stock)
}

func TestCancel_UnknownOrder(t *testing.T) {
	f := newFixture(t)
	_, err := f.orders.Cancel(context.Background(), "missing", "u1")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestUpdateStatus_AdminFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 1)

	o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{})
	assert.ErrorIs(t, err, order.ErrInvalidInput)

	shipped := order.StatusShipped
	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &shipped})
	assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)

	processing := order.StatusProcessing
	completed := order.PaymentCompleted
	updated, err := f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &processing, PaymentStatus: &completed})
	require.NoError(t, err)
	assert.Equal(t, order.StatusProcessing, updated.Status)
	assert.Equal(t, order.PaymentCompleted, updated.PaymentStatus)

	// unchanged values are a no-op
	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &processing})
	require.NoError(t, err)

	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &shipped})
	require.NoError(t, err)

	delivered := order.StatusDelivered
	got, err := f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &delivered})
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, got.Status)

	cancelled := order.StatusCancelled
	_, err = f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &cancelled})
	assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
	assert.Equal(t, 9, f.stock(t, "mug").Stock)

	var changes int
	for _, rec := range f.pendingEvents(t) {
		if rec.RoutingKey == "order.status_changed.v1" {
			changes++
		}
	}
	assert.Equal(t, 3, changes)
}

func TestUpdateStatus_AdminCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 4)

	o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)

	cancelled := order.StatusCancelled
	got, err := f.orders.UpdateStatus(ctx, o.ID, order.StatusUpdate{Status: &cancelled})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, 10, f.stock(t, "mug").Stock)
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 1)

	o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)

	got, err := f.orders.RecordPayment(ctx, o.ID, order.PaymentFailed)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, order.StatusPending, got.Status)

	_, err = f.orders.RecordPayment(ctx, o.ID, order.PaymentRefunded)
	assert.ErrorIs(t, err, order.ErrInvalidStatusTransition)
}

func TestListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 100)

	var placed []string
	for i := 0; i < 3; i++ {
		f.add(t, "u1", "mug", 1)
		o, err := f.orders.Checkout(ctx, checkoutInput("u1"))
		require.NoError(t, err)
		placed = append(placed, o.ID)
	}
	f.add(t, "u2", "mug", 1)
	other, err := f.orders.Checkout(ctx, checkoutInput("u2"))
	require.NoError(t, err)
	_, err = f.orders.Cancel(ctx, other.ID, "u2")
	require.NoError(t, err)

	page1, err := f.orders.ListForUser(ctx, "u1", order.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, page1.Orders, 2)
	assert.Equal(t, placed[2], page1.Orders[0].ID)
	assert.Equal(t, placed[1], page1.Orders[1].ID)
	assert.Equal(t, order.PageInfo{Page: 1, Limit: 2, Total: 3, TotalPages: 2}, page1.Pagination)

	page2, err := f.orders.ListForUser(ctx, "u1", order.Page{Number: 2, Size: 2})
	require.NoError(t, err)
	require.Len(t, page2.Orders, 1)
	assert.Equal(t, placed[0], page2.Orders[0].ID)

	all, err := f.orders.ListAll(ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 4, all.Pagination.Total)

	cancelledOnly, err := f.orders.ListAll(ctx, order.ListFilter{Status: order.StatusCancelled})
	require.NoError(t, err)
	require.Len(t, cancelledOnly.Orders, 1)
	assert.Equal(t, other.ID, cancelledOnly.Orders[0].ID)

	_, err = f.orders.Get(ctx, other.ID, "u1")
	assert.ErrorIs(t, err, order.ErrNotFound)
	got, err := f.orders.Get(ctx, other.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "u2", got.UserID)
}

func TestListing_FarPageIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "mug", "5", 10)
	f.add(t, "u1", "mug", 1)
	_, err := f.orders.Checkout(ctx, checkoutInput("u1"))
	require.NoError(t, err)

	list, err := f.orders.ListForUser(ctx, "u1", order.Page{Number: math.MaxInt64/20 + 2, Size: 20})
	require.NoError(t, err)
	assert.Empty(t, list.Orders)
	assert.Equal(t, 1, list.Pagination.Total)

	all, err := f.orders.ListAll(ctx, order.ListFilter{Page: order.Page{Number: math.MaxInt, Size: 1}})
	require.NoError(t, err)
	assert.Empty(t, all.Orders)
}
