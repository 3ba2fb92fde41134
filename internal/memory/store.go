package memory

import (
	"context"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

// Store keeps every table in process memory behind one mutex. A transaction
// holds the mutex for its whole duration and restores a snapshot when it
// fails, so units of work are serializable and all-or-nothing.
type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// WithinTx runs fn atomically. Nested calls join the outer unit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if s.inTx(ctx) {
		return fn(s.st)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) Ledger() *Ledger       { return &Ledger{s: s} }
func (s *Store) Carts() *Carts         { return &Carts{s: s} }
func (s *Store) Orders() *Orders       { return &Orders{s: s} }
func (s *Store) Outbox() *Outbox       { return &Outbox{s: s} }
func (s *Store) Sequences() *Sequences { return &Sequences{s: s} }
func (s *Store) Dedup() *Dedup         { return &Dedup{s: s} }

type state struct {
	products    map[string]inventory.Product
	carts       map[string]cart.Cart
	cartByUser  map[string]string
	items       map[string]cart.Item
	orders      map[string]order.Order
	outbox      []events.Record // pending only; sent rows are dropped
	sequences   map[string]int64
	checkpoints map[string]int64
	// insertion order for rows sharing a timestamp
	rank  map[string]int64
	clock int64
}

func newState() *state {
	return &state{
		products:    map[string]inventory.Product{},
		carts:       map[string]cart.Cart{},
		cartByUser:  map[string]string{},
		items:       map[string]cart.Item{},
		orders:      map[string]order.Order{},
		sequences:   map[string]int64{},
		checkpoints: map[string]int64{},
		rank:        map[string]int64{},
	}
}

func (st *state) nextRank(id string) {
	st.clock++
	st.rank[id] = st.clock
}

func (st *state) clone() *state {
	c := &state{
		products:    make(map[string]inventory.Product, len(st.products)),
		carts:       make(map[string]cart.Cart, len(st.carts)),
		cartByUser:  make(map[string]string, len(st.cartByUser)),
		items:       make(map[string]cart.Item, len(st.items)),
		orders:      make(map[string]order.Order, len(st.orders)),
		outbox:      make([]events.Record, len(st.outbox)),
		sequences:   make(map[string]int64, len(st.sequences)),
		checkpoints: make(map[string]int64, len(st.checkpoints)),
		rank:        make(map[string]int64, len(st.rank)),
		clock:       st.clock,
	}
	for k, v := range st.products {
		c.products[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = v
	}
	for k, v := range st.cartByUser {
		c.cartByUser[k] = v
	}
	for k, v := range st.items {
		c.items[k] = v
	}
	for k, v := range st.orders {
		// stored Items slices are never written in place
		c.orders[k] = v
	}
	copy(c.outbox, st.outbox)
	for k, v := range st.sequences {
		c.sequences[k] = v
	}
	for k, v := range st.checkpoints {
		c.checkpoints[k] = v
	}
	for k, v := range st.rank {
		c.rank[k] = v
	}
	return c
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	return o
}
