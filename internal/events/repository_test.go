package events

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestNextSequence(t *testing.T) {
	mock := newMock(t)
	seqs := NewPostgresSequences(mock)

	mock.ExpectQuery(`INSERT INTO event_sequences .* ON CONFLICT \(partition_key\) DO UPDATE`).
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"last_sequence"}).AddRow(int64(4)))

	seq, err := seqs.NextSequence(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)

	_, err = seqs.NextSequence(context.Background(), "")
	assert.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDedupCheckpoint(t *testing.T) {
	mock := newMock(t)
	dedup := NewPostgresDedup(mock)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT last_sequence FROM event_dedup_checkpoint`).
		WithArgs("c", "o1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec(`GREATEST\(event_dedup_checkpoint.last_sequence, EXCLUDED.last_sequence\)`).
		WithArgs("c", "o1", int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	_, ok, err := dedup.GetLastSequence(ctx, "c", "o1")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, dedup.UpsertLastSequence(ctx, "c", "o1", 3))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutbox_FetchAndMark(t *testing.T) {
	mock := newMock(t)
	outbox := NewPostgresOutbox(mock)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM outbox WHERE sent_at IS NULL ORDER BY created_at, id LIMIT \$1 FOR UPDATE SKIP LOCKED`).
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "routing_key", "partition_key", "payload", "created_at"}).
			AddRow("e1", "order.placed.v1", "o1", []byte(`{}`), now))
	mock.ExpectExec(`UPDATE outbox SET sent_at = now\(\) WHERE id = ANY`).
		WithArgs([]string{"e1"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	recs, err := outbox.FetchPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "order.placed.v1", recs[0].RoutingKey)

	require.NoError(t, outbox.MarkSent(ctx, []string{"e1"}))
	require.NoError(t, outbox.MarkSent(ctx, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
