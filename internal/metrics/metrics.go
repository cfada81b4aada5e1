package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// defaultRegistry is the default Prometheus registry.
var defaultRegistry = prometheus.DefaultRegisterer

// Metrics holds all daemon metrics.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	stegoOperations     *prometheus.CounterVec
	stegoDuration       *prometheus.HistogramVec
	stegoErrors         *prometheus.CounterVec
	payloadBytes        *prometheus.HistogramVec
}

// NewMetrics creates a new metrics instance on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(defaultRegistry)
}

// NewMetricsWithRegistry creates a metrics instance on a custom registry
// (for testing).
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		stegoOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stego_operations_total",
				Help: "Total number of backup/restore/capacity operations",
			},
			[]string{"operation", "format"}, // format: raster or frequency-domain
		),
		stegoDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stego_operation_duration_seconds",
				Help:    "Backup/restore/capacity operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"operation", "format"},
		),
		stegoErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stego_operation_errors_total",
				Help: "Total number of failed operations by error kind",
			},
			[]string{"operation", "error_kind"},
		),
		payloadBytes: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stego_payload_bytes",
				Help:    "Size distribution of embedded payloads",
				Buckets: prometheus.ExponentialBuckets(64, 4, 10),
			},
			[]string{"format"},
		),
	}
}

// RecordHTTPRequest records an HTTP request with its outcome.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordOperation records a completed core operation.
func (m *Metrics) RecordOperation(operation, format string, duration time.Duration) {
	m.stegoOperations.WithLabelValues(operation, format).Inc()
	m.stegoDuration.WithLabelValues(operation, format).Observe(duration.Seconds())
}

// RecordError records a failed core operation by taxonomy kind.
func (m *Metrics) RecordError(operation, errorKind string) {
	m.stegoErrors.WithLabelValues(operation, errorKind).Inc()
}

// RecordPayloadSize records the size of an embedded payload.
func (m *Metrics) RecordPayloadSize(format string, bytes int) {
	m.payloadBytes.WithLabelValues(format).Observe(float64(bytes))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
