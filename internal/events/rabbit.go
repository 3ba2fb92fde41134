package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

// RabbitPublisher publishes to the ecommerce.events topic exchange.
type RabbitPublisher struct {
	ch      *amqp.Channel
	timeout time.Duration
}

func NewRabbitPublisher(conn *amqp.Connection) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}
	return &RabbitPublisher{ch: ch, timeout: 3 * time.Second}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, rec Record) error {
	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		rec.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    rec.ID,
			Timestamp:    rec.CreatedAt,
			Body:         rec.Payload,
		},
	)
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}
