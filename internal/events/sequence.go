package events

import (
	"context"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

type SequenceStore interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

// PostgresSequences hands out per-partition sequence numbers. Called inside
// the producing transaction, the row lock orders events of one partition.
type PostgresSequences struct {
	pool db.Executor
}

func NewPostgresSequences(pool db.Executor) *PostgresSequences {
	return &PostgresSequences{pool: pool}
}

func (r *PostgresSequences) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, fmt.Errorf("partition key is required")
	}

	var next int64
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
		VALUES ($1, 1, now())
		ON CONFLICT (partition_key) DO UPDATE
		SET last_sequence = event_sequences.last_sequence + 1,
		    updated_at = now()
		RETURNING last_sequence
	`, partitionKey).Scan(&next)
	if err != nil {
		return 0, db.Classify(fmt.Errorf("increment sequence: %w", err))
	}
	return next, nil
}
