package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/checkout")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, 3, cfg.TxMaxRetries)
	assert.Equal(t, 20*time.Millisecond, cfg.TxRetryBackoff)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20, cfg.PageDefaultSize)
	assert.Equal(t, 100, cfg.PageMaxSize)
	assert.Equal(t, BrokerNone, cfg.EventsBroker)
	assert.Equal(t, "ecommerce.events", cfg.EventsTopic)
	assert.Equal(t, 50, cfg.OutboxBatchSize)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "POSTGRES")
	t.Setenv("DATABASE_DSN", "postgres://db/checkout")
	t.Setenv("EVENTS_BROKER", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TX_MAX_RETRIES", "5")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("PAGE_DEFAULT_SIZE", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.TxMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.OutboxPollInterval)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 20, cfg.PageDefaultSize)
}

func TestLoad_MemoryWithLogBroker(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("EVENTS_BROKER", "log")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BrokerLog, cfg.EventsBroker)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"postgres without dsn": {"STORE_DRIVER": "postgres"},
		"unknown driver":       {"STORE_DRIVER": "redis"},
		"unknown broker":       {"STORE_DRIVER": "memory", "EVENTS_BROKER": "nats"},
		"kafka without broker": {"DATABASE_DSN": "postgres://db/checkout", "EVENTS_BROKER": "kafka"},
		"memory consumer":      {"STORE_DRIVER": "memory", "CONSUME_PAYMENTS": "true"},
		"memory with rabbitmq": {"STORE_DRIVER": "memory", "EVENTS_BROKER": "rabbitmq"},
		"memory with kafka":    {"STORE_DRIVER": "memory", "EVENTS_BROKER": "kafka", "KAFKA_BROKERS": "k1:9092"},
		"page sizes":           {"STORE_DRIVER": "memory", "PAGE_DEFAULT_SIZE": "50", "PAGE_MAX_SIZE": "10"},
	}
	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DATABASE_DSN", "")
			for k, v := range vars {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
