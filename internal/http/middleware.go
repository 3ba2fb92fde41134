package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

const (
	HeaderUserID        = "X-User-Id"
	HeaderUserRole      = "X-User-Role"
	HeaderCorrelationID = "X-Correlation-Id"

	roleAdmin = "admin"
)

type ctxKey string

const ctxUserID ctxKey = "user_id"

func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderCorrelationID)
		if cid == "" {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)

		ctx := observability.WithCorrelationID(r.Context(), cid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe extracts the W3C trace context, opens a server span, injects a
// request-scoped logger and records HTTP metrics under the route template.
func observe(logger *zap.Logger, metrics *observability.Metrics, tracer trace.Tracer) func(http.Handler) http.Handler {
	prop := otel.GetTextMapPropagator()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, "HTTP "+r.Method, trace.WithSpanKind(trace.SpanKindServer))
			defer span.End()

			reqLogger := logger.With(
				zap.String("request_id", middleware.GetReqID(ctx)),
				zap.String("correlation_id", observability.CorrelationIDFrom(ctx)),
			)
			if sc := span.SpanContext(); sc.IsValid() {
				reqLogger = observability.WithTrace(reqLogger, sc.TraceID().String(), sc.SpanID().String())
			}
			ctx = observability.WithLogger(ctx, reqLogger)

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			took := time.Since(start)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := routePattern(r)

			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String("http.request.method", r.Method),
				attribute.String("http.route", route),
				attribute.Int("http.response.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			metrics.ObserveHTTP(r.Method, route, status, took)
			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.String("path", r.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", took),
			)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// requireUser enforces X-User-Id and stores it in the request context.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if uid == "" {
			writeProblem(w, http.StatusUnauthorized, kindUnauthorized, "missing required header: "+HeaderUserID)
			return
		}
		ctx := context.WithValue(r.Context(), ctxUserID, uid)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), roleAdmin) {
			writeProblem(w, http.StatusForbidden, kindForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(ctx context.Context) string {
	uid, _ := ctx.Value(ctxUserID).(string)
	return uid
}
