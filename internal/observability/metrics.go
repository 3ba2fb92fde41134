package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "checkout"

// Metrics holds the collectors exported on /metrics. A nil *Metrics is a no-op.
type Metrics struct {
	useCaseRequests  *prometheus.CounterVec
	useCaseDuration  *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	stockRejections  *prometheus.CounterVec
	outboxDispatched *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		useCaseRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usecase_requests_total",
			Help:      "Use case executions by outcome.",
		}, []string{"use_case", "outcome"}),
		useCaseDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "usecase_duration_seconds",
			Help:      "Use case latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"use_case"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		stockRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_reservation_rejections_total",
			Help:      "Reservations refused by the stock ledger.",
		}, []string{"reason"}),
		outboxDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dispatched_total",
			Help:      "Outbox records handed to the broker by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.useCaseRequests,
		m.useCaseDuration,
		m.httpRequests,
		m.httpDuration,
		m.stockRejections,
		m.outboxDispatched,
	)
	return m
}

func (m *Metrics) ObserveUseCase(useCase, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.useCaseRequests.WithLabelValues(useCase, outcome).Inc()
	m.useCaseDuration.WithLabelValues(useCase).Observe(took.Seconds())
}

func (m *Metrics) ObserveHTTP(method, route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) StockRejected(reason string) {
	if m == nil {
		return
	}
	m.stockRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) OutboxDispatched(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.outboxDispatched.WithLabelValues(outcome).Add(float64(n))
}
