package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTracker_RecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	tr := NewTracker(nil, m)

	core, logs := observer.New(zap.InfoLevel)
	ctx := WithLogger(context.Background(), zap.New(core))

	run := func(fail bool) (err error) {
		_, end := tr.Start(ctx, "cart.add_item")
		defer end(&err)
		if fail {
			return errors.New("nope")
		}
		return nil
	}

	require.NoError(t, run(false))
	require.Error(t, run(true))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.useCaseRequests.WithLabelValues("cart.add_item", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.useCaseRequests.WithLabelValues("cart.add_item", "error")))

	entries := logs.FilterMessage("use_case_done").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tr *Tracker
	ctx, end := tr.Start(context.Background(), "noop")
	require.NotNil(t, ctx)
	err := errors.New("ignored")
	end(&err)
}

func TestLoggerFrom_FallsBackToGlobal(t *testing.T) {
	assert.Same(t, zap.L(), LoggerFrom(context.Background()))

	l := zap.NewNop()
	assert.Same(t, l, LoggerFrom(WithLogger(context.Background(), l)))
}

func TestNewLogger_RejectsUnknownLevel(t *testing.T) {
	_, err := NewLogger("checkout-service", "test", "loud")
	require.Error(t, err)

	l, err := NewLogger("checkout-service", "test", "debug")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zap.DebugLevel))
}
