package memory

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/events"
)

type Outbox struct {
	s *Store
}

func (o *Outbox) Insert(ctx context.Context, rec events.Record) error {
	return o.s.run(ctx, func(st *state) error {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = o.s.now()
		}
		rec.Payload = append([]byte(nil), rec.Payload...)
		st.outbox = append(st.outbox, rec)
		return nil
	})
}

func (o *Outbox) FetchPending(ctx context.Context, limit int) ([]events.Record, error) {
	var out []events.Record
	err := o.s.run(ctx, func(st *state) error {
		n := min(limit, len(st.outbox))
		out = append(out, st.outbox[:n]...)
		return nil
	})
	return out, err
}

func (o *Outbox) MarkSent(ctx context.Context, ids []string) error {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return o.s.run(ctx, func(st *state) error {
		kept := make([]events.Record, 0, len(st.outbox))
		for _, rec := range st.outbox {
			if !want[rec.ID] {
				kept = append(kept, rec)
			}
		}
		st.outbox = kept
		return nil
	})
}

type Sequences struct {
	s *Store
}

func (q *Sequences) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}
	var next int64
	err := q.s.run(ctx, func(st *state) error {
		st.sequences[partitionKey]++
		next = st.sequences[partitionKey]
		return nil
	})
	return next, err
}

type Dedup struct {
	s *Store
}

func checkpointKey(consumerName, partitionKey string) string {
	return consumerName + "|" + partitionKey
}

func (d *Dedup) GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error) {
	var (
		last int64
		ok   bool
	)
	err := d.s.run(ctx, func(st *state) error {
		last, ok = st.checkpoints[checkpointKey(consumerName, partitionKey)]
		return nil
	})
	return last, ok, err
}

func (d *Dedup) UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, seq int64) error {
	return d.s.run(ctx, func(st *state) error {
		key := checkpointKey(consumerName, partitionKey)
		st.checkpoints[key] = max(st.checkpoints[key], seq)
		return nil
	})
}
