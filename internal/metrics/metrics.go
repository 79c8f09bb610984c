// Package metrics provides Prometheus metrics for mdversion.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Operation names used as label values.
const (
	OpCreateDocument   = "create_document"
	OpCreateVersion    = "create_version"
	OpActivateVersion  = "activate_version"
	OpTransition       = "transition_version"
	OpActiveQuery      = "active_query"
	OpCompare          = "compare_versions"
	OpSchemaValidation = "schema_validation"
)

// Metrics holds the collectors of one registry. Each instance owns its registry so several
// engines can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BreakingTotal     prometheus.Counter
	CacheLookups      *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	WebhookDeliveries *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)
	m := &Metrics{registry: reg}

	m.OperationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdversion_operations_total",
			Help: "Total number of use case invocations",
		},
		[]string{"operation", "status"},
	)
	m.OperationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdversion_operation_duration_seconds",
			Help:    "Duration of use case invocations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	m.BreakingTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "mdversion_breaking_comparisons_total",
			Help: "Comparisons that found at least one breaking change",
		},
	)
	m.CacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdversion_active_cache_lookups_total",
			Help: "Active version cache lookups by result",
		},
		[]string{"result"},
	)
	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdversion_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)
	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mdversion_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
	m.WebhookDeliveries = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mdversion_webhook_deliveries_total",
			Help: "Webhook delivery attempts by outcome",
		},
		[]string{"status"},
	)
	return m
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordOperation records a use case outcome.
func (m *Metrics) RecordOperation(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordComparison counts breaking comparisons.
func (m *Metrics) RecordComparison(breaking bool) {
	if m == nil || !breaking {
		return
	}
	m.BreakingTotal.Inc()
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records a served request.
func (m *Metrics) RecordHTTPRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *Metrics) RecordWebhookDelivery(err error) {
	if m == nil {
		return
	}
	status := "delivered"
	if err != nil {
		status = "failed"
	}
	m.WebhookDeliveries.WithLabelValues(status).Inc()
}
