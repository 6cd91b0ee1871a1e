package grid

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// reconcileTotal counts reconciliations by grid and result.
	reconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crudgrid_reconcile_total",
		Help: "Total grid state reconciliations by grid and result",
	}, []string{"grid", "result"})

	// reconcileDuration tracks reconciliation latency including store I/O.
	reconcileDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "crudgrid_reconcile_duration_seconds",
		Help:    "Grid state reconciliation duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	}, []string{"grid"})

	// settingsWrites counts settings store upserts.
	settingsWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crudgrid_settings_writes_total",
		Help: "Total persisted settings upserts by grid",
	}, []string{"grid"})

	// fieldSources counts which layer supplied each field.
	fieldSources = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "crudgrid_field_source_total",
		Help: "Display state fields by supplying layer",
	}, []string{"field", "source"})
)

func observeTrace(t Trace) {
	for field, src := range t {
		fieldSources.WithLabelValues(field, string(src)).Inc()
	}
}
