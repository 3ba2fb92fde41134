package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type addItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	c, err := h.carts.Get(ctx, userID(ctx))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req addItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if req.ProductID == "" {
		writeProblem(w, http.StatusBadRequest, kindInvalidInput, "productId is required")
		return
	}

	c, err := h.carts.AddItem(ctx, userID(ctx), req.ProductID, req.Quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req updateItemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	c, err := h.carts.UpdateItem(ctx, userID(ctx), chi.URLParam(r, "itemId"), req.Quantity)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	c, err := h.carts.RemoveItem(ctx, userID(ctx), chi.URLParam(r, "itemId"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	c, err := h.carts.Clear(ctx, userID(ctx))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
