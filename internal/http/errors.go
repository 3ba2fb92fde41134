package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

const (
	kindCartNotFound       = "CartNotFound"
	kindCartItemNotFound   = "CartItemNotFound"
	kindOrderNotFound      = "OrderNotFound"
	kindProductNotFound    = "ProductNotFound"
	kindCartEmpty          = "CartEmpty"
	kindInvalidInput       = "InvalidInput"
	kindInsufficientStock  = "InsufficientStock"
	kindInvalidTransition  = "InvalidStatusTransition"
	kindConflict           = "ConcurrencyConflict"
	kindUnauthorized       = "Unauthorized"
	kindForbidden          = "Forbidden"
	kindServiceUnavailable = "ServiceUnavailable"
	kindInternal           = "InternalError"
)

var errInvalidBody = errors.New("invalid request body")

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type stockDetails struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, kindCartNotFound
	case errors.Is(err, cart.ErrItemNotFound):
		return http.StatusNotFound, kindCartItemNotFound
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, kindOrderNotFound
	case errors.Is(err, inventory.ErrProductNotFound):
		return http.StatusNotFound, kindProductNotFound
	case errors.Is(err, order.ErrCartEmpty):
		return http.StatusBadRequest, kindCartEmpty
	case errors.Is(err, errInvalidBody),
		errors.Is(err, order.ErrInvalidInput),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidProduct),
		errors.Is(err, db.ErrOutOfRange):
		return http.StatusBadRequest, kindInvalidInput
	case errors.Is(err, inventory.ErrInsufficientStock):
		return http.StatusConflict, kindInsufficientStock
	case errors.Is(err, order.ErrInvalidStatusTransition):
		return http.StatusConflict, kindInvalidTransition
	case errors.Is(err, db.ErrConflict):
		return http.StatusConflict, kindConflict
	case errors.Is(err, db.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, kindServiceUnavailable
	default:
		return http.StatusInternalServerError, kindInternal
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, kind := classify(err)

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		observability.LoggerFrom(ctx).Error("request failed", zap.String("kind", kind), zap.Error(err))
		msg = http.StatusText(status)
	}

	resp := errorResponse{Error: kind, Message: msg}
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		resp.Details = stockDetails{
			ProductID: stockErr.ProductID,
			Requested: stockErr.Requested,
			Available: stockErr.Available,
		}
	}
	writeJSON(w, status, resp)
}

func writeProblem(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
