package events

import (
	"context"

	"go.uber.org/zap"
)

// Publisher hands a serialized event to a broker.
type Publisher interface {
	Publish(ctx context.Context, rec Record) error
	Close() error
}

// LogPublisher writes events to the log instead of a broker.
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, rec Record) error {
	p.logger.Info("event_published",
		zap.String("routing_key", rec.RoutingKey),
		zap.String("partition_key", rec.PartitionKey),
		zap.ByteString("payload", rec.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
