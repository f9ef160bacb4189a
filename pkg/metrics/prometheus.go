// Package metrics provides Prometheus metrics for the mastery synthesizer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the synthesizer.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Generation
	profilesGenerated prometheus.Counter
	runs              *prometheus.CounterVec
	runDuration       prometheus.Histogram
	batchLatency      prometheus.Histogram
	valuesClamped     *prometheus.CounterVec
	recordsRejected   *prometheus.CounterVec
	levelsAssigned    *prometheus.CounterVec

	// Scoring
	scoringRequests prometheus.Counter
	scoringErrors   prometheus.Counter
	scoringLatency  prometheus.Histogram

	// Pipeline
	queueSize   prometheus.Gauge
	workerCount prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xscaffold",
		subsystem:        "mastery",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() {
	// Register on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.profilesGenerated = auto.NewCounter(m.counter("profiles_generated_total",
		"Total number of synthetic profiles written to datasets"))
	m.runs = auto.NewCounterVec(m.counter("runs_total",
		"Generation runs by terminal status"), []string{"status"})
	m.runDuration = auto.NewHistogram(m.histogram("run_duration_seconds",
		"Wall time of a generation run in seconds", prometheus.ExponentialBuckets(0.01, 2, 14)))
	m.batchLatency = auto.NewHistogram(m.histogram("batch_latency_milliseconds",
		"Time to sample, constrain and score one batch in milliseconds", m.histogramBuckets))
	m.valuesClamped = auto.NewCounterVec(m.counter("values_clamped_total",
		"Sampled values that fell outside their feature domain and were clamped"), []string{"feature"})
	m.recordsRejected = auto.NewCounterVec(m.counter("records_rejected_total",
		"Records skipped because they could not be scored"), []string{"reason"})
	m.levelsAssigned = auto.NewCounterVec(m.counter("levels_assigned_total",
		"Profiles assigned to each mastery level"), []string{"level"})

	m.scoringRequests = auto.NewCounter(m.counter("scoring_requests_total",
		"Feature vectors submitted for scoring"))
	m.scoringErrors = auto.NewCounter(m.counter("scoring_errors_total",
		"Feature vectors that failed validation or scoring"))
	m.scoringLatency = auto.NewHistogram(m.histogram("scoring_latency_milliseconds",
		"Scoring latency in milliseconds", m.histogramBuckets))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Batches waiting for a worker"))
	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Workers in the generation pool"))

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counter("http_errors_total",
		"HTTP responses with an error status by endpoint and error type"), []string{"endpoint", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutines", "Current number of goroutines"))
}

// RecordProfilesGenerated adds n written profiles.
func RecordProfilesGenerated(n int) {
	globalManager.profilesGenerated.Add(float64(n))
}

// RecordRun counts a finished run with status "ok" or "failed".
func RecordRun(status string) {
	globalManager.runs.WithLabelValues(status).Inc()
}

// RecordRunDuration records run wall time in seconds.
func RecordRunDuration(seconds float64) {
	globalManager.runDuration.Observe(seconds)
}

// RecordBatchLatency records per-batch latency in milliseconds.
func RecordBatchLatency(latencyMs float64) {
	globalManager.batchLatency.Observe(latencyMs)
}

// RecordValueClamped counts one clamped value of feature.
func RecordValueClamped(feature string) {
	globalManager.valuesClamped.WithLabelValues(feature).Inc()
}

// RecordRecordRejected counts one skipped record.
func RecordRecordRejected(reason string) {
	globalManager.recordsRejected.WithLabelValues(reason).Inc()
}

// RecordLevelAssigned counts one profile assigned to level.
func RecordLevelAssigned(level string) {
	globalManager.levelsAssigned.WithLabelValues(level).Inc()
}

// RecordScoringRequest increments the scoring requests counter.
func RecordScoringRequest() {
	globalManager.scoringRequests.Inc()
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() {
	globalManager.scoringErrors.Inc()
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError records an HTTP response with an error status.
func RecordHTTPError(endpoint, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
