package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

// Recorder wraps domain payloads in an envelope and stores them in the
// outbox within the caller's transaction.
type Recorder struct {
	outbox   OutboxStore
	seq      SequenceStore
	producer string
	now      func() time.Time
}

func NewRecorder(outbox OutboxStore, seq SequenceStore, producer string) *Recorder {
	if producer == "" {
		producer = ServiceName
	}
	return &Recorder{
		outbox:   outbox,
		seq:      seq,
		producer: producer,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recorder) Record(ctx context.Context, eventName, partitionKey string, payload any) error {
	seq, err := r.seq.NextSequence(ctx, partitionKey)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := EventEnvelope[any]{
		EventName:     eventName,
		EventVersion:  eventVersion,
		EventID:       uuid.NewString(),
		CorrelationID: observability.CorrelationIDFrom(ctx),
		CausationID:   observability.CausationIDFrom(ctx),
		Producer:      r.producer,
		PartitionKey:  partitionKey,
		Sequence:      &seq,
		OccurredAt:    r.now(),
		Schema:        schemaFor(eventName, eventVersion),
		Payload:       payload,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", eventName, err)
	}

	return r.outbox.Insert(ctx, Record{
		ID:           env.EventID,
		RoutingKey:   RoutingKey(eventName, eventVersion),
		PartitionKey: partitionKey,
		Payload:      body,
		CreatedAt:    env.OccurredAt,
	})
}

// Discard drops every event. It replaces the Recorder when nothing will
// ever drain the outbox.
type Discard struct{}

func (Discard) Record(context.Context, string, string, any) error { return nil }
