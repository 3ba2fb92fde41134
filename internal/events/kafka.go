package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes events to one topic keyed by partition key, so all
// events of an order land on the same partition.
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 10 * time.Millisecond,
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, rec Record) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(rec.PartitionKey),
		Value: rec.Payload,
		Time:  rec.CreatedAt,
		Headers: []kafka.Header{
			{Key: "routing-key", Value: []byte(rec.RoutingKey)},
			{Key: "event-id", Value: []byte(rec.ID)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
