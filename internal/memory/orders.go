package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

type Orders struct {
	s *Store
}

func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	return r.s.run(ctx, func(st *state) error {
		for _, existing := range st.orders {
			if existing.OrderCode == o.OrderCode {
				return fmt.Errorf("%w: duplicate order code %s", db.ErrConflict, o.OrderCode)
			}
		}
		for _, it := range o.Items {
			if _, ok := st.products[it.ProductID]; !ok {
				return inventory.ErrProductNotFound
			}
		}

		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		for i := range o.Items {
			if o.Items[i].ID == "" {
				o.Items[i].ID = uuid.NewString()
			}
			o.Items[i].OrderID = o.ID
		}
		o.CreatedAt = r.s.now()
		o.UpdatedAt = o.CreatedAt

		st.orders[o.ID] = cloneOrder(*o)
		st.nextRank(o.ID)
		return nil
	})
}

func (r *Orders) Get(ctx context.Context, orderID string) (*order.Order, error) {
	var o order.Order
	err := r.s.run(ctx, func(st *state) error {
		var ok bool
		if o, ok = st.orders[orderID]; !ok {
			return order.ErrNotFound
		}
		o = cloneOrder(o)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetForUpdate is Get; the store lock already serializes transactions.
func (r *Orders) GetForUpdate(ctx context.Context, orderID string) (*order.Order, error) {
	return r.Get(ctx, orderID)
}

func (r *Orders) UpdateStatus(ctx context.Context, orderID string, from, to order.Status, payment order.PaymentStatus) (time.Time, error) {
	var updatedAt time.Time
	err := r.s.run(ctx, func(st *state) error {
		o, ok := st.orders[orderID]
		if !ok || o.Status != from {
			return fmt.Errorf("%w: order %s is no longer %s", order.ErrInvalidStatusTransition, orderID, from)
		}
		o.Status = to
		o.PaymentStatus = payment
		o.UpdatedAt = r.s.now()
		st.orders[orderID] = o
		updatedAt = o.UpdatedAt
		return nil
	})
	return updatedAt, err
}

func (r *Orders) ListByUser(ctx context.Context, userID string, page order.Page) ([]order.Order, int, error) {
	return r.list(ctx, page, func(o order.Order) bool { return o.UserID == userID })
}

func (r *Orders) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	return r.list(ctx, filter.Page, func(o order.Order) bool {
		return filter.Status == "" || o.Status == filter.Status
	})
}

func (r *Orders) list(ctx context.Context, page order.Page, keep func(order.Order) bool) ([]order.Order, int, error) {
	var (
		out   []order.Order
		total int
	)
	err := r.s.run(ctx, func(st *state) error {
		matched := []order.Order{}
		for _, o := range st.orders {
			if keep(o) {
				matched = append(matched, o)
			}
		}
		sort.Slice(matched, func(i, j int) bool {
			if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
				return matched[i].CreatedAt.After(matched[j].CreatedAt)
			}
			return st.rank[matched[i].ID] > st.rank[matched[j].ID]
		})

		total = len(matched)
		start := min(page.Offset(), total)
		end := min(start+page.Size, total)
		out = make([]order.Order, 0, end-start)
		for _, o := range matched[start:end] {
			out = append(out, cloneOrder(o))
		}
		return nil
	})
	return out, total, err
}
