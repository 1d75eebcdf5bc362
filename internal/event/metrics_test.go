package event

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/relay/internal/event/topic"
)

func TestMetrics_RecordsEmissions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg, "relay")
	require.NoError(t, err)

	r := NewRegistry(WithMetrics(m), WithFailurePolicy(Isolate))
	_, _ = r.Subscribe(topic.Name("e"), &recorder{})
	_, _ = r.Subscribe(topic.Name("e"), &recorder{err: errors.New("boom")})
	_, _ = r.Subscribe(topic.Name("e"), ListenerFunc(func(ctx context.Context, e Event) error {
		panic("x")
	}))

	_ = r.Emit(context.Background(), "e")
	_ = r.Emit(context.Background(), "quiet")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.emittedTotal.WithLabelValues("e")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emittedTotal.WithLabelValues("quiet")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.callsTotal.WithLabelValues("e")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failuresTotal.WithLabelValues("e", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failuresTotal.WithLabelValues("e", "panic")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.emitDuration))
}

func TestMetrics_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg, "relay")
	require.NoError(t, err)

	_, err = NewMetrics(reg, "relay")
	assert.ErrorIs(t, err, ErrMetricsRegistered)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.emitted("e")
		m.call("e")
		m.failure("e", "error")
		m.observe("e", 0)
	})
}
