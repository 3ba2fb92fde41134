package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	spanPrefix    = "UC."
	tracerName    = "checkout-service"
	outcomeOK     = "success"
	outcomeFailed = "error"
)

// Tracker wraps use case executions in a span, RED metrics and a completion log.
// A nil *Tracker is a no-op.
type Tracker struct {
	tracer  trace.Tracer
	metrics *Metrics
}

func NewTracker(tracer trace.Tracer, metrics *Metrics) *Tracker {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Tracker{tracer: tracer, metrics: metrics}
}

// Start opens a span for useCase. The returned func must be deferred with a
// pointer to the use case's named error result.
func (t *Tracker) Start(ctx context.Context, useCase string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	if t == nil {
		return ctx, func(*error) {}
	}

	attrs = append(attrs, attribute.String("use_case", useCase))
	ctx, span := t.tracer.Start(ctx, spanPrefix+useCase, trace.WithAttributes(attrs...))
	start := time.Now()

	return ctx, func(errp *error) {
		var err error
		if errp != nil {
			err = *errp
		}
		took := time.Since(start)
		outcome := outcomeOK

		if err != nil {
			outcome = outcomeFailed
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		sc := span.SpanContext()
		span.End()

		t.metrics.ObserveUseCase(useCase, outcome, took)

		logger := LoggerFrom(ctx).With(
			zap.String("use_case", useCase),
			zap.String("outcome", outcome),
			zap.Duration("latency", took),
		)
		if sc.HasTraceID() {
			logger = WithTrace(logger, sc.TraceID().String(), sc.SpanID().String())
		}
		if err != nil {
			logger.Warn("use_case_done", zap.Error(err))
			return
		}
		logger.Info("use_case_done")
	}
}
