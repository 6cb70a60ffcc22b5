// Package metrics provides Prometheus metrics for the opportunity suggestion service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Ranking
	rankingsTotal       *prometheus.CounterVec
	opportunitiesScored *prometheus.CounterVec
	suggestionOutcomes  *prometheus.CounterVec
	scoringLatency      *prometheus.HistogramVec
	scoringErrors       *prometheus.CounterVec
	scoreDistribution   prometheus.Histogram
	prefilterDropped    prometheus.Counter

	// Collaborators
	crmFetchLatency *prometheus.HistogramVec
	crmFetchErrors  *prometheus.CounterVec
	lookupLatency   *prometheus.HistogramVec
	llmRequests     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	workerJobsPerSecond     prometheus.Gauge

	// Process
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // service registry without default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "oppsuggest",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// Enabled reports whether recording is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.rankingsTotal = m.counterVec("rankings_total",
		"Ranking requests handled, by platform, strategy and result", "platform", "strategy", "result")
	m.opportunitiesScored = m.counterVec("opportunities_scored_total",
		"Opportunities scored, by strategy", "strategy")
	m.suggestionOutcomes = m.counterVec("suggestion_outcomes_total",
		"Selector outcomes: suggested, below_threshold, ambiguous, empty", "outcome")
	m.scoringLatency = m.histogramVec("scoring_latency_milliseconds",
		"Per-opportunity scoring latency in milliseconds", m.histogramBuckets, "strategy")
	m.scoringErrors = m.counterVec("scoring_errors_total",
		"Scoring failures, by strategy", "strategy")
	m.scoreDistribution = m.histogram("score_value",
		"Distribution of final opportunity scores", []float64{0.1, 0.2, 0.25, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1})
	m.prefilterDropped = m.counter("prefilter_dropped_total",
		"Opportunities removed by the rank pre-filter before selection")

	m.crmFetchLatency = m.histogramVec("crm_fetch_latency_milliseconds",
		"CRM connector fetch latency in milliseconds", m.histogramBuckets, "platform", "kind")
	m.crmFetchErrors = m.counterVec("crm_fetch_errors_total",
		"CRM connector failures", "platform", "kind")
	m.lookupLatency = m.histogramVec("lookup_latency_milliseconds",
		"Lookup store latency in milliseconds", m.histogramBuckets, "backend", "op")
	m.llmRequests = m.counterVec("llm_requests_total",
		"LLM chat requests, by speed tier and result", "speed", "result")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total",
		"Total number of errors by endpoint", "endpoint", "method", "error_type")
	m.errorsByComponent = m.counterVec("errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.queueSize = m.gauge("queue_size", "Current number of queued scoring jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Number of scoring workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Worker job latency in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed jobs")
	m.workerJobsPerSecond = m.gauge("worker_jobs_per_second", "Average jobs processed per second")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds",
		"Average GC pause time in milliseconds", []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// Ranking.

// RecordRanking counts one ranking request.
func RecordRanking(platform, strategy, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.rankingsTotal.WithLabelValues(platform, strategy, result).Inc()
}

// RecordOpportunityScored counts one scored opportunity and its final value.
func RecordOpportunityScored(strategy string, score float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.opportunitiesScored.WithLabelValues(strategy).Inc()
	globalManager.scoreDistribution.Observe(score)
}

// RecordSuggestionOutcome counts a selector outcome.
func RecordSuggestionOutcome(outcome string) {
	if !globalManager.enabled {
		return
	}
	globalManager.suggestionOutcomes.WithLabelValues(outcome).Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(strategy string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoringLatency.WithLabelValues(strategy).Observe(latencyMs)
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError(strategy string) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoringErrors.WithLabelValues(strategy).Inc()
}

// RecordPrefilterDropped adds n opportunities removed by the pre-filter.
func RecordPrefilterDropped(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.prefilterDropped.Add(float64(n))
}

// Collaborators.

// RecordCRMFetch records a connector call. kind is "opportunities" or "line_items".
func RecordCRMFetch(platform, kind string, latencyMs float64, err error) {
	if !globalManager.enabled {
		return
	}
	globalManager.crmFetchLatency.WithLabelValues(platform, kind).Observe(latencyMs)
	if err != nil {
		globalManager.crmFetchErrors.WithLabelValues(platform, kind).Inc()
	}
}

// RecordLookupLatency records a lookup store call.
func RecordLookupLatency(backend, op string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.lookupLatency.WithLabelValues(backend, op).Observe(latencyMs)
}

// RecordLLMRequest counts one chat request.
func RecordLLMRequest(speed, result string) {
	if !globalManager.enabled {
		return
	}
	globalManager.llmRequests.WithLabelValues(speed, result).Inc()
}

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// Queue.

// UpdateQueueSize sets the current queue size and utilization.
func UpdateQueueSize(size, capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueUtilization.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !globalManager.enabled {
		return
	}
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
	globalManager.errorsByComponent.WithLabelValues("queue", reason).Inc()
}

// Workers.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if !globalManager.enabled {
		return
	}
	globalManager.workerErrors.Inc()
}

// UpdateWorkerJobsPerSecond sets the average jobs processed per second.
func UpdateWorkerJobsPerSecond(rate float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerJobsPerSecond.Set(rate)
}

// Process.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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

// SetEnabled switches recording on or off for the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// Configure rebuilds the global manager with opts on a fresh registry and
// returns that registry. Call it once at startup, before anything records.
func Configure(opts ...Option) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
	return registry
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns the gauge refresh interval of the global manager.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}
