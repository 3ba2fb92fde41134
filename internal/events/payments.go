package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

const (
	paymentSucceededEvent = "payment.succeeded"
	paymentFailedEvent    = "payment.failed"
	paymentConsumerName   = ServiceName + ".payments"
)

type PaymentPayload struct {
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentRecorder stores a payment outcome on an order.
type PaymentRecorder interface {
	RecordPayment(ctx context.Context, orderID string, status order.PaymentStatus) (*order.Order, error)
}

// PaymentHandler applies payment.succeeded / payment.failed events exactly
// once per (partition, sequence).
type PaymentHandler struct {
	tx     Transactor
	dedup  DedupStore
	orders PaymentRecorder
	logger *zap.Logger
}

func NewPaymentHandler(tx Transactor, dedup DedupStore, orders PaymentRecorder, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{tx: tx, dedup: dedup, orders: orders, logger: logger}
}

func (h *PaymentHandler) Handle(ctx context.Context, routingKey string, body []byte) error {
	var (
		eventName string
		status    order.PaymentStatus
	)
	switch routingKey {
	case PaymentSucceededRoutingKey:
		eventName, status = paymentSucceededEvent, order.PaymentCompleted
	case PaymentFailedRoutingKey:
		eventName, status = paymentFailedEvent, order.PaymentFailed
	default:
		return fmt.Errorf("unexpected routing key %q", routingKey)
	}

	var env EventEnvelope[PaymentPayload]
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("unmarshal %s: %w", eventName, err)
	}
	if err := env.Validate(eventName, eventVersion); err != nil {
		return err
	}
	if env.Payload.OrderID == "" {
		return fmt.Errorf("%s: missing orderId", eventName)
	}

	logger := h.logger.With(
		zap.String("event_id", env.EventID),
		zap.String("order_id", env.Payload.OrderID),
		zap.String("payment_status", string(status)),
	)

	ctx = observability.WithCorrelationID(ctx, env.CorrelationID)
	ctx = observability.WithCausationID(ctx, env.EventID)

	return h.tx.WithinTx(ctx, func(ctx context.Context) error {
		if env.Sequence != nil {
			last, ok, err := h.dedup.GetLastSequence(ctx, paymentConsumerName, env.PartitionKey)
			if err != nil {
				return err
			}
			if ok && *env.Sequence <= last {
				logger.Info("duplicate payment event skipped", zap.Int64("sequence", *env.Sequence), zap.Int64("last", last))
				return nil
			}
		}

		_, err := h.orders.RecordPayment(ctx, env.Payload.OrderID, status)
		switch {
		case errors.Is(err, order.ErrNotFound), errors.Is(err, order.ErrInvalidStatusTransition):
			logger.Warn("payment event not applicable", zap.Error(err))
		case err != nil:
			return fmt.Errorf("record payment: %w", err)
		default:
			logger.Info("payment recorded")
		}

		if env.Sequence != nil {
			return h.dedup.UpsertLastSequence(ctx, paymentConsumerName, env.PartitionKey, *env.Sequence)
		}
		return nil
	})
}
