// Package observability provides prometheus metrics for the engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/casetrail/casetrail/internal/errors"
)

// Metrics holds all the metric collectors for the engine.
type Metrics struct {
	registry *prometheus.Registry

	// MutationsTotal counts data-layer mutations by operation and outcome.
	MutationsTotal *prometheus.CounterVec
	// ActivityAppendsTotal counts audit rows written.
	ActivityAppendsTotal prometheus.Counter
	// PresenceSweepDuration observes stale presence sweep latency.
	PresenceSweepDuration prometheus.Histogram
	// PresenceSweptRowsTotal counts rows marked offline by sweeps.
	PresenceSweptRowsTotal prometheus.Counter
	// BootstrapState is 1 for the session's current state, 0 otherwise.
	BootstrapState *prometheus.GaugeVec
	// BootstrapTransitionsTotal counts bootstrap state transitions.
	BootstrapTransitionsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		MutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrail_mutations_total",
			Help: "Data-layer mutations by operation and outcome",
		}, []string{"operation", "outcome"}),
		ActivityAppendsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casetrail_activity_appends_total",
			Help: "Audit trail rows written",
		}),
		PresenceSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "casetrail_presence_sweep_duration_seconds",
			Help:    "Stale presence sweep latency",
			Buckets: prometheus.DefBuckets,
		}),
		PresenceSweptRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "casetrail_presence_swept_rows_total",
			Help: "Presence rows marked offline by sweeps",
		}),
		BootstrapState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "casetrail_bootstrap_state",
			Help: "Session bootstrap state (1 for current state)",
		}, []string{"state"}),
		BootstrapTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrail_bootstrap_transitions_total",
			Help: "Session bootstrap state transitions",
		}, []string{"to_state"}),
	}

	collectors := []prometheus.Collector{
		m.MutationsTotal,
		m.ActivityAppendsTotal,
		m.PresenceSweepDuration,
		m.PresenceSweptRowsTotal,
		m.BootstrapState,
		m.BootstrapTransitionsTotal,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, errors.New(err).
				Component("observability").
				Category(errors.CategoryConfiguration).
				Context("operation", "register_collector").
				Build()
		}
	}
	return m, nil
}

// Handler returns an http.Handler serving the metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMutation counts one mutation attempt, bucketing by error outcome.
func (m *Metrics) RecordMutation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(errors.CategoryOf(err))
	}
	m.MutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// SetBootstrapState marks state as current and clears the other states.
func (m *Metrics) SetBootstrapState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		value := 0.0
		if s == state {
			value = 1.0
		}
		m.BootstrapState.WithLabelValues(s).Set(value)
	}
	m.BootstrapTransitionsTotal.WithLabelValues(state).Inc()
}
