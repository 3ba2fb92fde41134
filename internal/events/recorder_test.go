package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

type fakeOutbox struct {
	recs []Record
}

func (f *fakeOutbox) Insert(_ context.Context, rec Record) error {
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeOutbox) FetchPending(context.Context, int) ([]Record, error) { return f.recs, nil }
func (f *fakeOutbox) MarkSent(context.Context, []string) error { return nil }

type fakeSequences map[string]int64

func (f fakeSequences) NextSequence(_ context.Context, key string) (int64, error) {
	f[key]++
	return f[key], nil
}

func TestRecorder_WrapsPayloadInEnvelope(t *testing.T) {
	outbox := &fakeOutbox{}
	r := NewRecorder(outbox, fakeSequences{}, "")
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	ctx := observability.WithCorrelationID(context.Background(), "corr-1")
	require.NoError(t, r.Record(ctx, "order.placed", "o1", map[string]string{"orderId": "o1"}))
	require.NoError(t, r.Record(ctx, "order.cancelled", "o1", map[string]string{"orderId": "o1"}))

	require.Len(t, outbox.recs, 2)
	rec := outbox.recs[1]
	assert.Equal(t, "order.cancelled.v1", rec.RoutingKey)
	assert.Equal(t, "o1", rec.PartitionKey)
	assert.Equal(t, fixed, rec.CreatedAt)

	var env EventEnvelope[map[string]string]
	require.NoError(t, json.Unmarshal(rec.Payload, &env))
	require.NoError(t, env.Validate("order.cancelled", 1))
	assert.Equal(t, rec.ID, env.EventID)
	assert.Equal(t, ServiceName, env.Producer)
	assert.Equal(t, "corr-1", env.CorrelationID)
	assert.Empty(t, env.CausationID)
	assert.Equal(t, "contracts/events/order.cancelled.v1.payload.schema.json", env.Schema)
	require.NotNil(t, env.Sequence)
	assert.Equal(t, int64(2), *env.Sequence)
	assert.Equal(t, "o1", env.Payload["orderId"])
}

func TestRecorder_NamesTheCausingEvent(t *testing.T) {
	outbox := &fakeOutbox{}
	r := NewRecorder(outbox, fakeSequences{}, "")

	ctx := observability.WithCausationID(context.Background(), "evt-payment-1")
	require.NoError(t, r.Record(ctx, "order.status_changed", "o1", map[string]string{"orderId": "o1"}))

	var env EventEnvelope[map[string]string]
	require.NoError(t, json.Unmarshal(outbox.recs[0].Payload, &env))
	assert.Equal(t, "evt-payment-1", env.CausationID)
}

func TestEnvelopeValidate(t *testing.T) {
	env := EventEnvelope[struct{}]{EventName: "payment.failed", EventVersion: 1, PartitionKey: "o1"}
	assert.NoError(t, env.Validate("payment.failed", 1))
	assert.Error(t, env.Validate("payment.succeeded", 1))
	assert.Error(t, env.Validate("payment.failed", 2))

	env.PartitionKey = ""
	assert.Error(t, env.Validate("payment.failed", 1))
}

func TestDiscard_SatisfiesOrderOutbox(t *testing.T) {
	var outbox order.Outbox = Discard{}
	assert.NoError(t, outbox.Record(context.Background(), "order.placed", "o1", nil))
}
