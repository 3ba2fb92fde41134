package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Executor is the query surface shared by *pgxpool.Pool and pgx.Tx.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type Pool interface {
	Executor
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type txKey struct{}

// Conn returns the transaction bound to ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback Executor) Executor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return fallback
}

type TxOptions struct {
	// MaxRetries is the number of extra attempts after a conflict.
	MaxRetries int
	Backoff    time.Duration
}

// Transactor runs units of work in a single Postgres transaction.
type Transactor struct {
	pool   Pool
	opts   TxOptions
	logger *zap.Logger
}

func NewTransactor(pool Pool, opts TxOptions, logger *zap.Logger) *Transactor {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transactor{pool: pool, opts: opts, logger: logger}
}

// WithinTx runs fn inside a transaction and commits when fn returns nil.
// A call made while ctx already carries a transaction joins it.
// Conflicts restart the whole unit up to MaxRetries times.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	for attempt := 0; ; attempt++ {
		err := t.runOnce(ctx, fn)
		if err == nil || !errors.Is(err, ErrConflict) || attempt >= t.opts.MaxRetries {
			return err
		}

		t.logger.Warn("tx_conflict_retry", zap.Int("attempt", attempt+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return err
		case <-time.After(t.opts.Backoff * time.Duration(attempt+1)):
		}
	}
}

func (t *Transactor) runOnce(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Classify(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return Classify(err)
	}
	if err = tx.Commit(ctx); err != nil {
		return Classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}
