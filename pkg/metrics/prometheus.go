// Package metrics provides Prometheus metrics for the staffmatch recommendation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recommendation request outcomes.
const (
	OutcomeCacheHit = "cache_hit"
	OutcomeComputed = "computed"
	OutcomeError    = "error"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Recommendation engine
	recommendationRequests *prometheus.CounterVec
	computeLatency         prometheus.Histogram
	candidatesEvaluated    prometheus.Counter
	candidatesEligible     prometheus.Counter
	candidatesExcluded     prometheus.Counter
	computeShared          prometheus.Counter

	// Evaluation pool
	workerCount      prometheus.Gauge
	poolInFlight     prometheus.Gauge
	candidateLatency prometheus.Histogram

	// Cache
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheReadFailures  prometheus.Counter
	cacheWriteFailures prometheus.Counter
	cacheEntries       prometheus.Gauge
	cacheOpLatency     *prometheus.HistogramVec

	// Upstream collaborators
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "staffmatch",
		subsystem:        "recommendations",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.recommendationRequests = m.counterVec("requests_total",
		"Recommendation lookups by outcome (cache_hit, computed, error)", "outcome")
	m.computeLatency = m.histogram("compute_latency_milliseconds",
		"End-to-end ranking computation latency in milliseconds", m.histogramBuckets)
	m.candidatesEvaluated = m.counter("candidates_evaluated_total",
		"Candidates included in a computed ranking")
	m.candidatesEligible = m.counter("candidates_eligible_total",
		"Candidates that passed every hard constraint")
	m.candidatesExcluded = m.counter("candidates_excluded_total",
		"Candidates dropped because their data could not be scored")
	m.computeShared = m.counter("compute_shared_total",
		"Requests that joined an in-flight computation for the same requirement")

	m.workerCount = m.gauge("worker_count", "Configured evaluation pool size")
	m.poolInFlight = m.gauge("pool_in_flight", "Candidates currently being evaluated")
	m.candidateLatency = m.histogram("candidate_latency_microseconds",
		"Per-candidate evaluation latency in microseconds",
		[]float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000})

	m.cacheHits = m.counter("cache_hits_total", "Recommendation cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Recommendation cache misses")
	m.cacheReadFailures = m.counter("cache_read_failures_total", "Cache reads that failed and were treated as misses")
	m.cacheWriteFailures = m.counter("cache_write_failures_total", "Cache writes that failed after a successful computation")
	m.cacheEntries = m.gauge("cache_entries", "Requirements with a cached ranking")
	m.cacheOpLatency = m.histogramVec("cache_operation_latency_milliseconds",
		"Cache operation latency in milliseconds", "backend", "operation")

	m.upstreamRequests = m.counterVec("upstream_requests_total",
		"Collaborator requests by resource and result", "resource", "result")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds",
		"Collaborator request latency in milliseconds", "resource")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total",
		"Errors by component and error type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total",
		"Errors by error type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordRecommendationRequest counts a lookup by outcome.
func RecordRecommendationRequest(outcome string) {
	globalManager.recommendationRequests.WithLabelValues(outcome).Inc()
}

// RecordComputeLatency records a ranking computation in milliseconds.
func RecordComputeLatency(latencyMs float64) {
	globalManager.computeLatency.Observe(latencyMs)
}

// RecordCandidates records the outcome counts of one computation.
func RecordCandidates(evaluated, eligible, excluded int) {
	globalManager.candidatesEvaluated.Add(float64(evaluated))
	globalManager.candidatesEligible.Add(float64(eligible))
	globalManager.candidatesExcluded.Add(float64(excluded))
}

// RecordComputeShared counts a caller that joined an in-flight computation.
func RecordComputeShared() {
	globalManager.computeShared.Inc()
}

// UpdateWorkerCount sets the evaluation pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddPoolInFlight adjusts the number of candidates being evaluated.
func AddPoolInFlight(delta int) {
	globalManager.poolInFlight.Add(float64(delta))
}

// RecordCandidateLatency records one candidate evaluation in microseconds.
func RecordCandidateLatency(latencyUs float64) {
	globalManager.candidateLatency.Observe(latencyUs)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheReadFailure increments the failed cache read counter.
func RecordCacheReadFailure() {
	globalManager.cacheReadFailures.Inc()
}

// RecordCacheWriteFailure increments the failed cache write counter.
func RecordCacheWriteFailure() {
	globalManager.cacheWriteFailures.Inc()
}

// UpdateCacheEntries sets the number of cached requirements.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// RecordCacheOperation records a cache operation latency in milliseconds.
func RecordCacheOperation(backend, operation string, latencyMs float64) {
	globalManager.cacheOpLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordUpstreamRequest records a collaborator call.
func RecordUpstreamRequest(resource, result string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(resource, result).Inc()
	globalManager.upstreamLatency.WithLabelValues(resource).Observe(latencyMs)
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
