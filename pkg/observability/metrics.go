package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes the service's Prometheus instruments
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	CommandsExecuted   *prometheus.CounterVec
	QueriesExecuted    *prometheus.CounterVec
	AIRequests         *prometheus.CounterVec
	AIRequestDuration  *prometheus.HistogramVec
	AITokensUsed       *prometheus.CounterVec
	SessionsPersisted  prometheus.Counter
	PersistenceFailures prometheus.Counter
}

// NewMetrics registers all instruments on a fresh registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route, and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		CommandsExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands dispatched by type and outcome",
		}, []string{"type", "outcome"}),
		QueriesExecuted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Queries dispatched by type and outcome",
		}, []string{"type", "outcome"}),
		AIRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_requests_total",
			Help:      "Upstream AI calls by provider, operation, and outcome",
		}, []string{"provider", "operation", "outcome"}),
		AIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ai_request_duration_seconds",
			Help:      "Upstream AI call latency by provider",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"provider"}),
		AITokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_tokens_total",
			Help:      "Tokens consumed by provider and kind",
		}, []string{"provider", "kind"}),
		SessionsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_persisted_total",
			Help:      "Successful write-behind session saves",
		}),
		PersistenceFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Failed write-behind session saves",
		}),
	}
}

// Handler returns the /metrics scrape endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed HTTP request
func (m *Metrics) ObserveHTTP(method, route, status string, duration time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveAI records one completed upstream AI call
func (m *Metrics) ObserveAI(provider, operation, outcome string, duration time.Duration) {
	m.AIRequests.WithLabelValues(provider, operation, outcome).Inc()
	m.AIRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
