package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

// StartPaymentConsumer binds the service queue to payment events and
// handles deliveries until ctx is cancelled.
func StartPaymentConsumer(ctx context.Context, conn *amqp.Connection, h *PaymentHandler, logger *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		return fmt.Errorf("declare events exchange: %w", err)
	}

	queue := serviceQueue(ServiceName, "payments")
	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range []string{PaymentSucceededRoutingKey, PaymentFailedRoutingKey} {
		if err := ch.QueueBind(queue, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fmt.Errorf("qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue,
		ServiceName, // consumer tag
		false,       // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				logger.Info("stopping payment consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Warn("payment messages channel closed")
					return
				}

				if err := h.Handle(ctx, msg.RoutingKey, msg.Body); err != nil {
					requeue := errors.Is(err, db.ErrConflict) || errors.Is(err, db.ErrUnavailable)
					logger.Error("handle payment event",
						zap.String("routing_key", msg.RoutingKey),
						zap.Bool("requeue", requeue),
						zap.Error(err),
					)
					_ = msg.Nack(false, requeue)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()

	return nil
}
