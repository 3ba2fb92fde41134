package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
)

type productRequest struct {
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status string          `json:"status"`
}

type restockRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	p, err := h.stock.GetProduct(ctx, chi.URLParam(r, "productId"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpsertProduct creates or updates the catalog view of a product. Stock is
// only taken for new products; existing stock moves through restock and
// reservations.
func (h *Handler) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req productRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if req.Status == "" {
		req.Status = string(inventory.ProductActive)
	}

	p, err := h.stock.UpsertProduct(ctx, inventory.Product{
		ID:     chi.URLParam(r, "productId"),
		Name:   req.Name,
		Price:  req.Price,
		Stock:  req.Stock,
		Status: inventory.ProductStatus(req.Status),
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Restock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req restockRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	p, err := h.stock.Restock(ctx, chi.URLParam(r, "productId"), req.Quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
