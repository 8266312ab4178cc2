// Package metrics exposes Prometheus collectors for core operations and
// snapshot persistence.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/mtms/internal/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	coreOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mtms",
			Subsystem: "core",
			Name:      "operations_total",
			Help:      "Total number of identity and ledger operations by outcome.",
		},
		[]string{"operation", "outcome"},
	)

	snapshotSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mtms",
			Subsystem: "snapshot",
			Name:      "saves_total",
			Help:      "Total number of snapshot saves by outcome.",
		},
		[]string{"outcome"},
	)

	snapshotSaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mtms",
			Subsystem: "snapshot",
			Name:      "save_duration_seconds",
			Help:      "Duration of snapshot saves.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
	)
)

func init() {
	Registry.MustRegister(
		coreOperations,
		snapshotSaves,
		snapshotSaveDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Outcome maps an operation error onto a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrValidation):
		return "validation"
	case errors.Is(err, common.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrConflict):
		return "conflict"
	case errors.Is(err, common.ErrDuplicateUsername):
		return "duplicate"
	case errors.Is(err, common.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, common.ErrPersistence):
		return "persistence"
	case errors.Is(err, common.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

// RecordOperation counts one call of a core operation.
func RecordOperation(operation string, err error) {
	coreOperations.WithLabelValues(operation, Outcome(err)).Inc()
}

// RecordSave tracks a snapshot save and its duration.
func RecordSave(err error, d time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	snapshotSaves.WithLabelValues(outcome).Inc()
	snapshotSaveDuration.Observe(d.Seconds())
}
