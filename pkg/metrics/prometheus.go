// Package metrics provides Prometheus metrics for the trigger pipeline.
package metrics

import (
	"fmt"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Variable label names. WithConstLabels renames const labels that would
// collide with them by prepending constLabelPrefix.
const (
	labelFormat    = "format"
	labelSample    = "sample"
	labelLabel     = "label"
	labelComponent = "component"
	labelErrorType = "error_type"

	constLabelPrefix = "const_"
)

func isVariableLabel(name string) bool {
	switch name {
	case labelFormat, labelSample, labelLabel, labelComponent, labelErrorType:
		return true
	}
	return false
}

// Manager manages all Prometheus metrics for a pipeline run.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Reader metrics
	filesRead       *prometheus.CounterVec
	fileReadLatency prometheus.Histogram
	eventsRead      *prometheus.CounterVec
	eventsDuplicate prometheus.Counter

	// Shaping metrics
	rowsShaped     *prometheus.CounterVec
	shapingLatency prometheus.Histogram

	// Scoring metrics
	rowsScored            prometheus.Counter
	inferenceBatchLatency prometheus.Histogram
	decisionsFired        *prometheus.CounterVec

	// Worker metrics
	workerCount       prometheus.Gauge
	workerActiveCount prometheus.Gauge

	// Error metrics
	errorRateByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "trigml",
		subsystem:      "pipeline",
		latencyBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		constLabels:    make(map[string]string),
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.constLabels)

	m.filesRead = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "files_read_total",
		Help:        "Total number of input files read, by format",
		ConstLabels: labels,
	}, []string{labelFormat})

	m.fileReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "file_read_latency_milliseconds",
		Help:        "Time spent decoding a single input file in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.eventsRead = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_read_total",
		Help:        "Total number of events decoded, by sample",
		ConstLabels: labels,
	}, []string{labelSample})

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_duplicate_total",
		Help:        "Total number of events dropped because their identifier was already seen",
		ConstLabels: labels,
	})

	m.rowsShaped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_shaped_total",
		Help:        "Total number of feature rows produced, by label",
		ConstLabels: labels,
	}, []string{labelLabel})

	m.shapingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "shaping_latency_milliseconds",
		Help:        "Time spent shaping a batch into a feature matrix in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.rowsScored = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "rows_scored_total",
		Help:        "Total number of feature rows scored by a model",
		ConstLabels: labels,
	})

	m.inferenceBatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "inference_batch_latency_milliseconds",
		Help:        "Model inference latency per batch in milliseconds",
		Buckets:     m.latencyBuckets,
		ConstLabels: labels,
	})

	m.decisionsFired = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "decisions_fired_total",
		Help:        "Total number of events accepted by the threshold decision, by label",
		ConstLabels: labels,
	}, []string{labelLabel})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_count",
		Help:        "Configured number of reader workers",
		ConstLabels: labels,
	})

	m.workerActiveCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_active_count",
		Help:        "Number of reader workers currently decoding a file",
		ConstLabels: labels,
	})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total errors by component and error type",
		ConstLabels: labels,
	}, []string{labelComponent, labelErrorType})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "Heap memory in use in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})
}

// RecordFileRead increments the files read counter for a format.
func RecordFileRead(format string) {
	globalManager.filesRead.WithLabelValues(format).Inc()
}

// RecordFileReadLatency records the decode latency of one file.
func RecordFileReadLatency(latencyMs float64) {
	globalManager.fileReadLatency.Observe(latencyMs)
}

// RecordEventsRead adds n decoded events for a sample.
func RecordEventsRead(sample string, n int) {
	globalManager.eventsRead.WithLabelValues(sample).Add(float64(n))
}

// RecordDuplicatesDropped adds n dropped duplicate events.
func RecordDuplicatesDropped(n int) {
	globalManager.eventsDuplicate.Add(float64(n))
}

// RecordRowsShaped adds n shaped rows for a label.
func RecordRowsShaped(label string, n int) {
	globalManager.rowsShaped.WithLabelValues(label).Add(float64(n))
}

// RecordShapingLatency records shaping latency in milliseconds.
func RecordShapingLatency(latencyMs float64) {
	globalManager.shapingLatency.Observe(latencyMs)
}

// RecordRowsScored adds n scored rows.
func RecordRowsScored(n int) {
	globalManager.rowsScored.Add(float64(n))
}

// RecordInferenceBatchLatency records inference latency for one batch.
func RecordInferenceBatchLatency(latencyMs float64) {
	globalManager.inferenceBatchLatency.Observe(latencyMs)
}

// RecordDecisionsFired adds n accepted events for a label.
func RecordDecisionsFired(label string, n int) {
	globalManager.decisionsFired.WithLabelValues(label).Add(float64(n))
}

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// IncWorkerActive marks one worker as busy.
func IncWorkerActive() {
	globalManager.workerActiveCount.Inc()
}

// DecWorkerActive marks one worker as idle.
func DecWorkerActive() {
	globalManager.workerActiveCount.Dec()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMetrics samples heap usage and goroutine count.
func UpdateSystemMetrics() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	globalManager.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the registry behind the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// WriteTextfile writes the current state of the registry in the node
// exporter textfile format. An empty path is a no-op.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, GetRegistry()); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
