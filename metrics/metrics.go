package metrics

import (
	"errors"
	"net/http"
	"time"

	"dicegame/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric exported by the store
const Namespace = "dicegame"

// Result labels for operation counters
const (
	ResultOK         = "ok"
	ResultNotFound   = "not_found"
	ResultValidation = "validation_error"
	ResultPersist    = "persistence_error"
	ResultError      = "error"
)

// Metrics holds the Prometheus instruments of the store
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SaveDuration      prometheus.Histogram
	SaveFailures      prometheus.Counter
	GamesDeleted      prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewMetrics creates the instruments and registers them with reg. A nil reg
// uses a private registry, so several stores can live in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Store operations by name and result",
		}, []string{"operation", "result"}),
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency including lock wait",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"operation"}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "document_save_duration_seconds",
			Help:      "Time spent writing the whole document",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		SaveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "document_save_failures_total",
			Help:      "Document writes that did not complete",
		}),
		GamesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "games_deleted_total",
			Help:      "Stale games removed by cleanup",
		}),
	}

	reg.MustRegister(
		m.Operations,
		m.OperationDuration,
		m.SaveDuration,
		m.SaveFailures,
		m.GamesDeleted,
	)

	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	} else {
		m.gatherer = prometheus.DefaultGatherer
	}

	return m
}

// ObserveOperation counts one call of operation and records its latency
func (m *Metrics) ObserveOperation(operation string, start time.Time, err error) {
	m.Operations.WithLabelValues(operation, Result(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveSave records one document write attempt
func (m *Metrics) ObserveSave(duration time.Duration, err error) {
	m.SaveDuration.Observe(duration.Seconds())
	if err != nil {
		m.SaveFailures.Inc()
	}
}

// AddGamesDeleted counts games removed by a cleanup run
func (m *Metrics) AddGamesDeleted(n int) {
	if n > 0 {
		m.GamesDeleted.Add(float64(n))
	}
}

// Handler serves the registry the metrics were registered with
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Result maps an operation error to its metric label
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, models.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, models.ErrValidation):
		return ResultValidation
	case errors.Is(err, models.ErrPersistence):
		return ResultPersist
	default:
		return ResultError
	}
}
