package event

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dshills/relay/internal/event/topic"
)

// Metrics holds the prometheus collectors a Registry records into.
// A nil *Metrics records nothing.
type Metrics struct {
	emittedTotal  *prometheus.CounterVec
	callsTotal    *prometheus.CounterVec
	failuresTotal *prometheus.CounterVec
	emitDuration  *prometheus.HistogramVec
}

// NewMetrics creates the registry collectors and registers them with reg.
// Registering twice with the same registerer returns ErrMetricsRegistered.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	m := &Metrics{
		emittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_emitted_total",
				Help:      "Number of Emit calls per event name",
			},
			[]string{"event"},
		),
		callsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_calls_total",
				Help:      "Number of listener calls per event name",
			},
			[]string{"event"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "listener_failures_total",
				Help:      "Number of failed listener calls per event name and failure kind",
			},
			[]string{"event", "kind"},
		),
		emitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "emit_duration_seconds",
				Help:      "Time spent delivering one emission to its listeners",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event"},
		),
	}

	for _, c := range []prometheus.Collector{m.emittedTotal, m.callsTotal, m.failuresTotal, m.emitDuration} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, ErrMetricsRegistered
			}
			return nil, fmt.Errorf("register event metrics: %w", err)
		}
	}

	return m, nil
}

func (m *Metrics) emitted(name topic.Name) {
	if m == nil {
		return
	}
	m.emittedTotal.WithLabelValues(name.String()).Inc()
}

func (m *Metrics) call(name topic.Name) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(name.String()).Inc()
}

func (m *Metrics) failure(name topic.Name, kind string) {
	if m == nil {
		return
	}
	m.failuresTotal.WithLabelValues(name.String(), kind).Inc()
}

func (m *Metrics) observe(name topic.Name, d time.Duration) {
	if m == nil {
		return
	}
	m.emitDuration.WithLabelValues(name.String()).Observe(d.Seconds())
}
