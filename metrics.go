package renovo

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for renovo's request and
// credential lifecycle. It is safe for concurrent use.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	refreshTotal       *prometheus.CounterVec
	refreshDuration    prometheus.Histogram
	refreshJoinedTotal prometheus.Counter

	unauthorizedRetriesTotal *prometheus.CounterVec
	sessionExpiredTotal      prometheus.Counter
	storeErrorsTotal         *prometheus.CounterVec

	deduplicationHits *prometheus.CounterVec

	errorsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		requestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_requests_total",
				Help: "Total number of HTTP requests made",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "renovo_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "renovo_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		refreshTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_token_refresh_total",
				Help: "Total number of token refresh attempts by outcome",
			},
			[]string{"outcome"},
		),
		refreshDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "renovo_token_refresh_duration_seconds",
				Help:    "Duration of token refresh calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		refreshJoinedTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "renovo_token_refresh_joined_total",
				Help: "Total number of requests that joined an in-flight refresh",
			},
		),
		unauthorizedRetriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_unauthorized_retries_total",
				Help: "Total number of requests retried after a token refresh",
			},
			[]string{"method", "endpoint"},
		),
		sessionExpiredTotal: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "renovo_session_expired_total",
				Help: "Total number of session teardowns after failed refreshes",
			},
		),
		storeErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_token_store_errors_total",
				Help: "Total number of token store failures by operation",
			},
			[]string{"op"},
		),
		deduplicationHits: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_deduplication_hits_total",
				Help: "Total number of deduplication hits",
			},
			[]string{"method", "endpoint"},
		),
		errorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "renovo_errors_total",
				Help: "Total number of errors encountered by kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
	}

	if reg, ok := registry.(*prometheus.Registry); ok {
		mc.registry = reg
	}

	return mc
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRefresh increments the refresh counter for an outcome and, when the
// attempt reached the network, observes its duration.
func (mc *MetricsCollector) RecordRefresh(outcome string, duration time.Duration) {
	if mc == nil {
		return
	}

	mc.refreshTotal.WithLabelValues(outcome).Inc()
	if duration > 0 {
		mc.refreshDuration.Observe(duration.Seconds())
	}
}

// RecordRefreshJoined counts a request that waited on another's refresh.
func (mc *MetricsCollector) RecordRefreshJoined() {
	if mc == nil {
		return
	}

	mc.refreshJoinedTotal.Inc()
}

// RecordUnauthorizedRetry counts a request re-sent after a refresh.
func (mc *MetricsCollector) RecordUnauthorizedRetry(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.unauthorizedRetriesTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordSessionExpired counts a session teardown.
func (mc *MetricsCollector) RecordSessionExpired() {
	if mc == nil {
		return
	}

	mc.sessionExpiredTotal.Inc()
}

// RecordStoreError counts a token store failure by operation.
func (mc *MetricsCollector) RecordStoreError(op string) {
	if mc == nil {
		return
	}

	mc.storeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordDeduplicationHit increments de-dup hit counter.
func (mc *MetricsCollector) RecordDeduplicationHit(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.deduplicationHits.WithLabelValues(method, endpoint).Inc()
}

// RecordError increments error counter by kind.
func (mc *MetricsCollector) RecordError(kind, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(kind, method, endpoint).Inc()
}

// GetRegistry exposes the underlying prometheus registry when the collector
// was built on one (the default), or nil for foreign registerers.
func (mc *MetricsCollector) GetRegistry() *prometheus.Registry {
	return mc.registry
}
