package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

// DedupStore keeps the last processed sequence per consumer and partition.
type DedupStore interface {
	GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error)
	UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, seq int64) error
}

type PostgresDedup struct {
	pool db.Executor
}

func NewPostgresDedup(pool db.Executor) *PostgresDedup {
	return &PostgresDedup{pool: pool}
}

// GetLastSequence returns the last processed sequence for a consumer/partition.
// The boolean indicates whether a checkpoint existed.
func (r *PostgresDedup) GetLastSequence(ctx context.Context, consumerName, partitionKey string) (int64, bool, error) {
	var last int64
	if err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT last_sequence
		FROM event_dedup_checkpoint
		WHERE consumer_name=$1 AND partition_key=$2
		FOR UPDATE
	`, consumerName, partitionKey).Scan(&last); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, db.Classify(fmt.Errorf("select checkpoint: %w", err))
	}
	return last, true, nil
}

// UpsertLastSequence advances the checkpoint; it never moves backwards.
func (r *PostgresDedup) UpsertLastSequence(ctx context.Context, consumerName, partitionKey string, seq int64) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO event_dedup_checkpoint (consumer_name, partition_key, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (consumer_name, partition_key)
		DO UPDATE SET
			last_sequence = GREATEST(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence),
			updated_at = now()
	`, consumerName, partitionKey, seq)
	if err != nil {
		return db.Classify(fmt.Errorf("upsert checkpoint: %w", err))
	}
	return nil
}
