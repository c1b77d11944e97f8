// Package metrics provides Prometheus metrics for the matchflow service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the matchflow service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Run lifecycle
	runsSubmitted *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runsDuplicate prometheus.Counter
	solveLatency  *prometheus.HistogramVec

	// Solver output
	edgesBuilt          prometheus.Histogram
	matchesFound        *prometheus.CounterVec
	matchingCost        prometheus.Histogram
	cyclesCanceled      prometheus.Counter
	augmentations       prometheus.Counter
	integrityViolations prometheus.Counter

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge
	workerErrors      prometheus.Counter

	// Store
	storedRuns prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "matchflow",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.runsSubmitted = m.counterVec("runs_submitted_total", "Total number of runs accepted for processing", "kind")
	m.runsCompleted = m.counterVec("runs_completed_total", "Total number of finished runs by outcome", "kind", "status")
	m.runsDuplicate = m.counter("runs_duplicate_total", "Total number of runs rejected as duplicates of an earlier request id")
	m.solveLatency = m.histogramVec("solve_latency_milliseconds", "End-to-end solve latency in milliseconds", "kind", "algorithm")

	m.edgesBuilt = m.histogram("edges_built", "Number of eligible edges per matching graph",
		prometheus.ExponentialBuckets(1, 4, 12))
	m.matchesFound = m.counterVec("matches_total", "Total number of pairs produced", "kind")
	m.matchingCost = m.histogram("matching_cost", "Total cost of produced matchings",
		prometheus.ExponentialBuckets(1, 4, 12))
	m.cyclesCanceled = m.counter("cycles_canceled_total", "Total number of negative cycles canceled")
	m.augmentations = m.counter("augmentations_total", "Total number of shortest-path augmentations")
	m.integrityViolations = m.counter("integrity_violations_total", "Total number of matchings that failed validation")

	m.queueSize = m.gauge("queue_size", "Current size of the run queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Configured number of workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently solving a run")
	m.workerErrors = m.counter("worker_errors_total", "Total number of failed runs inside workers")

	m.storedRuns = m.gauge("stored_runs", "Number of runs held by the run store")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
}

// RecordRunSubmitted counts an accepted run of the given kind.
func RecordRunSubmitted(kind string) {
	globalManager.runsSubmitted.WithLabelValues(kind).Inc()
}

// RecordRunCompleted counts a finished run.
func RecordRunCompleted(kind, status string) {
	globalManager.runsCompleted.WithLabelValues(kind, status).Inc()
}

// RecordRunDuplicate counts a rejected duplicate submission.
func RecordRunDuplicate() {
	globalManager.runsDuplicate.Inc()
}

// RecordSolveLatency records solve latency in milliseconds.
func RecordSolveLatency(kind, algorithm string, latencyMs float64) {
	globalManager.solveLatency.WithLabelValues(kind, algorithm).Observe(latencyMs)
}

// RecordEdgesBuilt records the size of a freshly built graph.
func RecordEdgesBuilt(n int) {
	globalManager.edgesBuilt.Observe(float64(n))
}

// RecordMatches adds n produced pairs.
func RecordMatches(kind string, n int) {
	globalManager.matchesFound.WithLabelValues(kind).Add(float64(n))
}

// RecordMatchingCost records the value of a matching.
func RecordMatchingCost(cost float64) {
	globalManager.matchingCost.Observe(cost)
}

// RecordCyclesCanceled adds n canceled cycles.
func RecordCyclesCanceled(n int) {
	globalManager.cyclesCanceled.Add(float64(n))
}

// RecordAugmentations adds n augmentations.
func RecordAugmentations(n int) {
	globalManager.augmentations.Add(float64(n))
}

// RecordIntegrityViolation counts a matching rejected by validation.
func RecordIntegrityViolation() {
	globalManager.integrityViolations.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateStoredRuns sets the number of runs held by the store.
func UpdateStoredRuns(count int) {
	globalManager.storedRuns.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

var registerRuntimeOnce sync.Once //nolint:gochecknoglobals // guards one-time collector registration

// RegisterRuntimeCollectors adds Go runtime and process collectors to the
// custom registry. Calling it more than once is harmless.
func RegisterRuntimeCollectors() {
	registerRuntimeOnce.Do(func() {
		customRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}
