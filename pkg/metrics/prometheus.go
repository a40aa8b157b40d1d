// Package metrics provides Prometheus metrics for the health score engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the health score service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine metrics
	calculations       *prometheus.CounterVec
	noScorableData     prometheus.Counter
	ignoredMarkers     prometheus.Counter
	calculationLatency prometheus.Histogram
	lastOverallScore   prometheus.Gauge
	categoriesScored   prometheus.Histogram
	trendDirections    *prometheus.CounterVec

	// Invalidation metrics
	invalidations   *prometheus.CounterVec
	queueEnqueues   *prometheus.CounterVec
	queueDepth      prometheus.Gauge
	queueCapacity   prometheus.Gauge
	deliveryLatency prometheus.Histogram

	// Store metrics
	storeLatency    *prometheus.HistogramVec
	storeErrors     *prometheus.CounterVec
	storedSnapshots prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "healthscore",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.calculations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "calculations_total",
		Help:        "Health score calculations by dedup outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.noScorableData = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "no_scorable_data_total",
		Help:        "Calculations rejected because no marker had data",
		ConstLabels: m.constLabels,
	})

	m.ignoredMarkers = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "ignored_markers_total",
		Help:        "Marker keys dropped because they are not in the catalog",
		ConstLabels: m.constLabels,
	})

	m.calculationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "calculation_latency_milliseconds",
		Help:        "End-to-end latency of calculate requests in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.lastOverallScore = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "last_overall_score",
		Help:        "Overall score of the most recently persisted snapshot",
		ConstLabels: m.constLabels,
	})

	m.categoriesScored = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "categories_scored",
		Help:        "Number of categories with data per computed snapshot",
		Buckets:     []float64{0, 1, 2, 3, 4},
		ConstLabels: m.constLabels,
	})

	m.trendDirections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "trend_results_total",
		Help:        "Trend results by direction",
		ConstLabels: m.constLabels,
	}, []string{"direction"})

	m.invalidations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "invalidation",
		Name:        "signals_total",
		Help:        "Invalidation signals by publish result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.queueEnqueues = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "invalidation",
		Name:        "queue_enqueues_total",
		Help:        "Signals offered to the dispatch queue by result",
		ConstLabels: m.constLabels,
	}, []string{"result"})

	m.queueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "invalidation",
		Name:        "queue_depth",
		Help:        "Signals waiting in the dispatch queue",
		ConstLabels: m.constLabels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "invalidation",
		Name:        "queue_capacity",
		Help:        "Capacity of the dispatch queue",
		ConstLabels: m.constLabels,
	})

	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "invalidation",
		Name:        "delivery_latency_milliseconds",
		Help:        "Time spent delivering one queued signal in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "store",
		Name:        "operation_latency_milliseconds",
		Help:        "Store operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "store",
		Name:        "errors_total",
		Help:        "Store operations that failed",
		ConstLabels: m.constLabels,
	}, []string{"operation"})

	m.storedSnapshots = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "store",
		Name:        "snapshots",
		Help:        "Snapshots held by the in-memory store",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_seconds",
		Help:        "HTTP request duration in seconds",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordCalculation increments the calculations counter for outcome.
func RecordCalculation(outcome string) {
	globalManager.calculations.WithLabelValues(outcome).Inc()
}

// RecordNoScorableData increments the no-scorable-data counter.
func RecordNoScorableData() {
	globalManager.noScorableData.Inc()
}

// RecordIgnoredMarkers adds n to the ignored markers counter.
func RecordIgnoredMarkers(n int) {
	if n > 0 {
		globalManager.ignoredMarkers.Add(float64(n))
	}
}

// RecordCalculationLatency records calculation latency in milliseconds.
func RecordCalculationLatency(latencyMs float64) {
	globalManager.calculationLatency.Observe(latencyMs)
}

// UpdateLastOverallScore sets the last persisted overall score.
func UpdateLastOverallScore(score float64) {
	globalManager.lastOverallScore.Set(score)
}

// RecordCategoriesScored records how many categories a snapshot covered.
func RecordCategoriesScored(n int) {
	globalManager.categoriesScored.Observe(float64(n))
}

// RecordTrendDirection increments the trend counter for direction.
func RecordTrendDirection(direction string) {
	globalManager.trendDirections.WithLabelValues(direction).Inc()
}

// RecordInvalidation increments the invalidation counter for result.
func RecordInvalidation(result string) {
	globalManager.invalidations.WithLabelValues(result).Inc()
}

// RecordQueueEnqueue increments the dispatch queue counter for result.
func RecordQueueEnqueue(result string) {
	globalManager.queueEnqueues.WithLabelValues(result).Inc()
}

// UpdateQueueDepth sets the number of queued signals.
func UpdateQueueDepth(depth int) {
	globalManager.queueDepth.Set(float64(depth))
}

// UpdateQueueCapacity sets the dispatch queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordDeliveryLatency records how long one signal delivery took in milliseconds.
func RecordDeliveryLatency(latencyMs float64) {
	globalManager.deliveryLatency.Observe(latencyMs)
}

// RecordStoreLatency records the latency of a store operation in milliseconds.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError increments the store error counter for operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateStoredSnapshots sets the in-memory snapshot count.
func UpdateStoredSnapshots(count int) {
	globalManager.storedSnapshots.Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
