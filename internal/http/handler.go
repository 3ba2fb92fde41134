package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

type CartService interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (*cart.Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*cart.Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (*cart.Cart, error)
	Clear(ctx context.Context, userID string) (*cart.Cart, error)
}

type OrderService interface {
	Checkout(ctx context.Context, in order.CheckoutInput) (*order.Order, error)
	Cancel(ctx context.Context, orderID, requesterID string) (*order.Order, error)
	UpdateStatus(ctx context.Context, orderID string, upd order.StatusUpdate) (*order.Order, error)
	Get(ctx context.Context, orderID, requesterID string) (*order.Order, error)
	ListForUser(ctx context.Context, userID string, page order.Page) (order.List, error)
	ListAll(ctx context.Context, filter order.ListFilter) (order.List, error)
}

type Handler struct {
	carts   CartService
	orders  OrderService
	stock   inventory.Ledger
	timeout time.Duration
}

func NewHandler(carts CartService, orders OrderService, stock inventory.Ledger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{carts: carts, orders: orders, stock: stock, timeout: timeout}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "checkout-service"})
}

// bounded returns the request context limited to the handler timeout.
func (h *Handler) bounded(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", errInvalidBody, key)
	}
	return n, nil
}

func pageFrom(r *http.Request) (order.Page, error) {
	number, err := queryInt(r, "page")
	if err != nil {
		return order.Page{}, err
	}
	size, err := queryInt(r, "limit")
	if err != nil {
		return order.Page{}, err
	}
	return order.Page{Number: number, Size: size}, nil
}
