package events

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
)

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DispatcherOptions struct {
	BatchSize int
	Interval  time.Duration
}

// Dispatcher relays outbox records to the broker and marks them sent.
// Records stay pending until a publish succeeds.
type Dispatcher struct {
	tx      Transactor
	store   OutboxStore
	pub     Publisher
	opts    DispatcherOptions
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewDispatcher(tx Transactor, store OutboxStore, pub Publisher, opts DispatcherOptions, metrics *observability.Metrics, logger *zap.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{tx: tx, store: store, pub: pub, opts: opts, metrics: metrics, logger: logger}
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.logger.Info("outbox dispatcher started", zap.Duration("interval", d.opts.Interval))
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("stopping outbox dispatcher")
			return
		case <-ticker.C:
			for {
				n, err := d.DispatchOnce(ctx)
				if err != nil {
					d.logger.Warn("outbox dispatch failed", zap.Error(err))
					break
				}
				if n < d.opts.BatchSize {
					break
				}
			}
		}
	}
}

// DispatchOnce publishes one batch in order and returns how many records
// were marked sent. A publish failure stops the batch; earlier records are
// still marked.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	sent := 0
	var pubErr error

	err := d.tx.WithinTx(ctx, func(ctx context.Context) error {
		sent, pubErr = 0, nil
		recs, err := d.store.FetchPending(ctx, d.opts.BatchSize)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(recs))
		for _, rec := range recs {
			if err := d.pub.Publish(ctx, rec); err != nil {
				pubErr = fmt.Errorf("publish %s (%s): %w", rec.ID, rec.RoutingKey, err)
				break
			}
			ids = append(ids, rec.ID)
		}
		if err := d.store.MarkSent(ctx, ids); err != nil {
			return err
		}
		sent = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.metrics.OutboxDispatched("sent", sent)
	if pubErr != nil {
		d.metrics.OutboxDispatched("failed", 1)
		return sent, pubErr
	}
	return sent, nil
}
