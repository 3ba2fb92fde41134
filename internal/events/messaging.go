package events

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange             = "ecommerce.events"
	PaymentSucceededRoutingKey = "payment.succeeded.v1"
	PaymentFailedRoutingKey    = "payment.failed.v1"
	ServiceName                = "checkout-service-go"
	eventVersion               = 1
)

// RoutingKey is the broker routing key (or Kafka header) for a versioned event.
func RoutingKey(eventName string, version int) string {
	return fmt.Sprintf("%s.v%d", eventName, version)
}

func serviceQueue(serviceName, routingKey string) string {
	return serviceName + "." + routingKey
}

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}
