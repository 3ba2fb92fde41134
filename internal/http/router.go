package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

type Deps struct {
	Carts  CartService
	Orders OrderService
	Stock  inventory.Ledger

	RequestTimeout time.Duration

	Logger   *zap.Logger
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Tracer   trace.Tracer
}

func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Tracer == nil {
		d.Tracer = otel.Tracer("checkout-service-go/http")
	}
	h := NewHandler(d.Carts, d.Orders, d.Stock, d.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(correlationID)
	r.Use(observe(d.Logger, d.Metrics, d.Tracer))
	r.Use(middleware.Recoverer)

	r.Get("/health", h.Health)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/inventory/{productId}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)

		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddCartItem)
			r.Put("/items/{itemId}", h.UpdateCartItem)
			r.Delete("/items/{itemId}", h.RemoveCartItem)
		})

		r.Route("/api/orders", func(r chi.Router) {
			r.Post("/", h.Checkout)
			r.Get("/", h.ListOrders)
			r.Get("/{orderId}", h.GetOrder)
			r.Put("/{orderId}/cancel", h.CancelOrder)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)

			r.Get("/api/admin/orders", h.ListAllOrders)
			r.Put("/api/admin/orders/{orderId}/status", h.UpdateOrderStatus)
			r.Put("/api/inventory/products/{productId}", h.UpsertProduct)
			r.Post("/api/inventory/{productId}/restock", h.Restock)
		})
	})

	return r
}
