// Package metrics provides Prometheus instrumentation for service operations.
//
// A nil *Metrics is valid and records nothing, so callers that run without
// a registry need no special casing.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ajaxzhan/filekeeper/pkg/types"
)

// Metrics holds the collectors for one service instance.
type Metrics struct {
	operationsTotal *prometheus.CounterVec
	indexEntries    prometheus.Gauge
	persistDuration prometheus.Histogram
	rollbacksTotal  *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filekeeper_operations_total",
				Help: "Total number of service operations by operation and result",
			},
			[]string{"operation", "result"},
		),
		indexEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "filekeeper_index_entries",
				Help: "Number of entries currently held in the metadata index",
			},
		),
		persistDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filekeeper_index_persist_duration_seconds",
				Help:    "Time taken to persist the metadata index",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
		rollbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "filekeeper_rollbacks_total",
				Help: "Total number of compensated mutations by operation",
			},
			[]string{"operation"},
		),
	}
}

// RecordOperation counts a finished operation under a result label derived
// from err.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, Result(err)).Inc()
}

// SetIndexEntries updates the index size gauge.
func (m *Metrics) SetIndexEntries(n int) {
	if m == nil {
		return
	}
	m.indexEntries.Set(float64(n))
}

// ObservePersist records how long a snapshot write took.
func (m *Metrics) ObservePersist(d time.Duration) {
	if m == nil {
		return
	}
	m.persistDuration.Observe(d.Seconds())
}

// RecordRollback counts a compensated mutation.
func (m *Metrics) RecordRollback(operation string) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(operation).Inc()
}

// Result maps an operation error onto a small, fixed label set.
func Result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, types.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, types.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrParentMissing):
		return "parent_missing"
	case errors.Is(err, types.ErrNotEmpty):
		return "not_empty"
	case errors.Is(err, types.ErrPermissionDenied):
		return "permission_denied"
	default:
		return "error"
	}
}

// Handler serves the collectors registered with gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
