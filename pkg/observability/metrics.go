package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Platform gateway metrics
	GatewayCallsTotal    *prometheus.CounterVec
	GatewayCallDuration  *prometheus.HistogramVec
	GatewayErrorsTotal   *prometheus.CounterVec
	RateLimitRemaining   prometheus.Gauge

	// Link store metrics
	LinkQueriesTotal   *prometheus.CounterVec
	LinkQueryDuration  *prometheus.HistogramVec
	LinkStoreErrors    prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GatewayCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_gateway_calls_total",
				Help: "Total number of platform API calls",
			},
			[]string{"operation"},
		),
		GatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_gateway_call_duration_seconds",
				Help:    "Platform API call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		GatewayErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_gateway_errors_total",
				Help: "Total number of failed platform API calls",
			},
			[]string{"operation"},
		),
		RateLimitRemaining: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_gateway_rate_limit_remaining",
				Help: "Remaining platform API rate limit as last reported",
			},
		),
		LinkQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_link_queries_total",
				Help: "Total number of link store queries",
			},
			[]string{"operation"},
		),
		LinkQueryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_link_query_duration_seconds",
				Help:    "Link store query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		LinkStoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portal_link_store_errors_total",
				Help: "Total number of link store failures",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.GatewayCallsTotal,
		m.GatewayCallDuration,
		m.GatewayErrorsTotal,
		m.RateLimitRemaining,
		m.LinkQueriesTotal,
		m.LinkQueryDuration,
		m.LinkStoreErrors,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler returns the prometheus scrape handler for this metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveGatewayCall records a platform API call with its duration and outcome
func (m *Metrics) ObserveGatewayCall(operation string, start time.Time, err error) {
	m.GatewayCallsTotal.WithLabelValues(operation).Inc()
	m.GatewayCallDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.GatewayErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// ObserveLinkQuery records a link store query with its duration and outcome
func (m *Metrics) ObserveLinkQuery(operation string, start time.Time, err error) {
	m.LinkQueriesTotal.WithLabelValues(operation).Inc()
	m.LinkQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		m.LinkStoreErrors.Inc()
	}
}

// ObserveHTTPRequest records an HTTP request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, start time.Time) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
}
