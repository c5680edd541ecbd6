// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ledger metrics
	OperationsCommitted *prometheus.CounterVec
	OperationsRejected  *prometheus.CounterVec
	LastCommittedSeq    prometheus.Gauge

	// Journal metrics
	EventsExported *prometheus.CounterVec
	ExportErrors   *prometheus.CounterVec
	ExporterLag    *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimited         prometheus.Counter

	// Feed metrics
	WSSubscribers prometheus.Gauge
	WSMessages    prometheus.Counter

	// Health metrics
	LastSuccessfulExport prometheus.Gauge
}

// Compile-time interface check.
var _ ledger.Observer = (*Metrics)(nil)

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg registers with the Prometheus default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_ledger"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Ledger metrics
		OperationsCommitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_committed_total",
			Help:      "Total number of committed operations by operation",
		}, []string{"operation"}),
		OperationsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_rejected_total",
			Help:      "Total number of rejected operations by operation and error kind",
		}, []string{"operation", "kind"}),
		LastCommittedSeq: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "last_committed_seq",
			Help:      "Sequence number of the most recently committed event",
		}),

		// Journal metrics
		EventsExported: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "events_exported_total",
			Help:      "Total number of events written to a journal store",
		}, []string{"store"}),
		ExportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "export_errors_total",
			Help:      "Total number of failed journal writes",
		}, []string{"store"}),
		ExporterLag: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "exporter_lag_events",
			Help:      "Committed events not yet written to a journal store",
		}, []string{"store"}),

		// HTTP metrics
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		}),

		// Feed metrics
		WSSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Current number of WebSocket subscribers",
		}),
		WSMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_sent_total",
			Help:      "Total number of events sent to WebSocket subscribers",
		}),

		// Health metrics
		LastSuccessfulExport: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_export_timestamp",
			Help:      "Unix timestamp of last successful journal write",
		}),
	}
}

// OperationCommitted implements ledger.Observer.
func (m *Metrics) OperationCommitted(op ledger.Operation, e *domain.Event) {
	m.OperationsCommitted.WithLabelValues(string(op)).Inc()
	if e != nil {
		m.LastCommittedSeq.Set(float64(e.Seq))
	}
}

// OperationRejected implements ledger.Observer.
func (m *Metrics) OperationRejected(op ledger.Operation, err error) {
	m.OperationsRejected.WithLabelValues(string(op), ledger.ErrorKind(err)).Inc()
}

// RecordExport records a journal write of n events to store.
func (m *Metrics) RecordExport(store string, n int, err error) {
	if err != nil {
		m.ExportErrors.WithLabelValues(store).Inc()
		return
	}
	m.EventsExported.WithLabelValues(store).Add(float64(n))
	m.LastSuccessfulExport.Set(float64(time.Now().Unix()))
}

// SetExporterLag updates the lag gauge for store.
func (m *Metrics) SetExporterLag(store string, lag uint64) {
	m.ExporterLag.WithLabelValues(store).Set(float64(lag))
}

// RecordHTTPRequest records the latency of one HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method string, status int, elapsed time.Duration) {
	m.HTTPRequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a /metrics handler serving the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)
