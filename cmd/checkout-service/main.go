package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/memory"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/observability"
	"github.com/andreasstove999/ecommerce-system/services/checkout-service-go/internal/order"
)

var version = "dev"

type transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// backend is one consistent set of stores sharing a transactor.
type backend struct {
	tx        transactor
	ledger    inventory.Ledger
	carts     cart.Repository
	orders    order.Repository
	outbox    events.OutboxStore
	sequences events.SequenceStore
	dedup     events.DedupStore
	close     func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(events.ServiceName, cfg.ServiceEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing + metrics ---
	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		ServiceName:    events.ServiceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       true,
	})
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)
	tracker := observability.NewTracker(otel.Tracer(events.ServiceName), metrics)

	// --- Storage ---
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer be.close()

	var outbox order.Outbox = events.NewRecorder(be.outbox, be.sequences, events.ServiceName)
	if cfg.StoreDriver == config.StoreMemory && cfg.EventsBroker == config.BrokerNone {
		// no dispatcher runs and the memory outbox dies with the process
		outbox = events.Discard{}
	}

	carts := cart.NewService(be.tx, be.carts, be.ledger, tracker)
	orders := order.NewService(order.Deps{
		Tx:         be.tx,
		Orders:     be.orders,
		Carts:      be.carts,
		Ledger:     be.ledger,
		Outbox:     outbox,
		Codes:      order.NewCodeGenerator(),
		Pagination: order.Pagination{DefaultSize: cfg.PageDefaultSize, MaxSize: cfg.PageMaxSize},
		Tracker:    tracker,
		Metrics:    metrics,
	})

	// --- Events ---
	var rabbit *amqp.Connection
	if cfg.EventsBroker == config.BrokerRabbitMQ || cfg.ConsumePayments {
		rabbit, err = events.Dial(cfg.RabbitMQURL)
		if err != nil {
			logger.Fatal("rabbitmq", zap.Error(err))
		}
		defer rabbit.Close()
	}

	pub, err := newPublisher(cfg, rabbit, logger)
	if err != nil {
		logger.Fatal("events publisher", zap.String("broker", cfg.EventsBroker), zap.Error(err))
	}
	if pub != nil {
		defer pub.Close()
		dispatcher := events.NewDispatcher(be.tx, be.outbox, pub, events.DispatcherOptions{
			BatchSize: cfg.OutboxBatchSize,
			Interval:  cfg.OutboxPollInterval,
		}, metrics, logger.Named("outbox"))
		go dispatcher.Run(ctx)
	}

	if cfg.ConsumePayments {
		h := events.NewPaymentHandler(be.tx, be.dedup, orders, logger.Named("payments"))
		if err := events.StartPaymentConsumer(ctx, rabbit, h, logger.Named("payments")); err != nil {
			logger.Fatal("start payment consumer", zap.Error(err))
		}
	}

	// --- HTTP ---
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Carts:          carts,
			Orders:         orders,
			Stock:          be.ledger,
			RequestTimeout: cfg.RequestTimeout,
			Logger:         logger.Named("http"),
			Metrics:        metrics,
			Gatherer:       reg,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.StoreDriver), zap.String("broker", cfg.EventsBroker))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server failed", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	if cfg.StoreDriver == config.StoreMemory {
		store := memory.NewStore()
		logger.Warn("using in-memory store; state is lost on restart")
		return &backend{
			tx:        store,
			ledger:    store.Ledger(),
			carts:     store.Carts(),
			orders:    store.Orders(),
			outbox:    store.Outbox(),
			sequences: store.Sequences(),
			dedup:     store.Dedup(),
			close:     func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
	}

	return &backend{
		tx: db.NewTransactor(pool, db.TxOptions{
			MaxRetries: cfg.TxMaxRetries,
			Backoff:    cfg.TxRetryBackoff,
		}, logger.Named("tx")),
		ledger:    inventory.NewPostgresLedger(pool),
		carts:     cart.NewPostgresRepository(pool),
		orders:    order.NewPostgresRepository(pool),
		outbox:    events.NewPostgresOutbox(pool),
		sequences: events.NewPostgresSequences(pool),
		dedup:     events.NewPostgresDedup(pool),
		close:     pool.Close,
	}, nil
}

// newPublisher returns nil when event publishing is disabled.
func newPublisher(cfg config.Config, rabbit *amqp.Connection, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.EventsBroker {
	case config.BrokerLog:
		return events.NewLogPublisher(logger.Named("events")), nil
	case config.BrokerRabbitMQ:
		return events.NewRabbitPublisher(rabbit)
	case config.BrokerKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.EventsTopic)
	default:
		return nil, nil
	}
}
