package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

type checkoutRequest struct {
	ShippingAddress string          `json:"shippingAddress"`
	ShippingFee     decimal.Decimal `json:"shippingFee"`
	Notes           string          `json:"notes"`
}

type statusRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"paymentStatus"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req checkoutRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	o, err := h.orders.Checkout(ctx, order.CheckoutInput{
		UserID:          userID(ctx),
		ShippingAddress: req.ShippingAddress,
		ShippingFee:     req.ShippingFee,
		Notes:           req.Notes,
	})
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	page, err := pageFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	list, err := h.orders.ListForUser(ctx, userID(ctx), page)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	o, err := h.orders.Get(ctx, chi.URLParam(r, "orderId"), userID(ctx))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	o, err := h.orders.Cancel(ctx, chi.URLParam(r, "orderId"), userID(ctx))
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	page, err := pageFrom(r)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	filter := order.ListFilter{Page: page}
	if s := r.URL.Query().Get("status"); s != "" {
		if filter.Status, err = order.ParseStatus(s); err != nil {
			writeError(ctx, w, err)
			return
		}
	}

	list, err := h.orders.ListAll(ctx, filter)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.bounded(r)
	defer cancel()

	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(ctx, w, err)
		return
	}

	var upd order.StatusUpdate
	if req.Status != nil {
		st, err := order.ParseStatus(*req.Status)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		upd.Status = &st
	}
	if req.PaymentStatus != nil {
		ps, err := order.ParsePaymentStatus(*req.PaymentStatus)
		if err != nil {
			writeError(ctx, w, err)
			return
		}
		upd.PaymentStatus = &ps
	}

	o, err := h.orders.UpdateStatus(ctx, chi.URLParam(r, "orderId"), upd)
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
