package events

import (
	"context"
	"fmt"
	"time"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
)

// Record is one serialized event waiting in the outbox.
type Record struct {
	ID           string
	RoutingKey   string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxStore interface {
	Insert(ctx context.Context, rec Record) error
	// FetchPending returns the oldest unsent records and, inside a
	// transaction, locks them against other dispatchers.
	FetchPending(ctx context.Context, limit int) ([]Record, error)
	MarkSent(ctx context.Context, ids []string) error
}

type PostgresOutbox struct {
	pool db.Executor
}

func NewPostgresOutbox(pool db.Executor) *PostgresOutbox {
	return &PostgresOutbox{pool: pool}
}

func (o *PostgresOutbox) Insert(ctx context.Context, rec Record) error {
	_, err := db.Conn(ctx, o.pool).Exec(ctx, `
		INSERT INTO outbox (id, routing_key, partition_key, payload)
		VALUES ($1, $2, $3, $4)
	`, rec.ID, rec.RoutingKey, rec.PartitionKey, rec.Payload)
	if err != nil {
		return db.Classify(fmt.Errorf("insert outbox: %w", err))
	}
	return nil
}

func (o *PostgresOutbox) FetchPending(ctx context.Context, limit int) ([]Record, error) {
	rows, err := db.Conn(ctx, o.pool).Query(ctx, `
		SELECT id, routing_key, partition_key, payload, created_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, db.Classify(fmt.Errorf("fetch outbox: %w", err))
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.RoutingKey, &rec.PartitionKey, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(fmt.Errorf("iterate outbox: %w", err))
	}
	return out, nil
}

func (o *PostgresOutbox) MarkSent(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.Conn(ctx, o.pool).Exec(ctx, `
		UPDATE outbox SET sent_at = now() WHERE id = ANY($1::uuid[])
	`, ids)
	if err != nil {
		return db.Classify(fmt.Errorf("mark outbox sent: %w", err))
	}
	return nil
}
