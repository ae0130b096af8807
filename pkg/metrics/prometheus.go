// Package metrics provides Prometheus metrics for the rinktrack service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

var latencyBucketsMs = []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

// Manager manages all Prometheus metrics for the tracker service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Tracking metrics - what the operators at the rink produce
	eventsRecorded   *prometheus.CounterVec
	eventsAmended    prometheus.Counter
	eventsRetracted  prometheus.Counter
	undos            prometheus.Counter
	redos            prometheus.Counter
	shiftsStarted    prometheus.Counter
	shiftsEnded      prometheus.Counter
	commandsRejected *prometheus.CounterVec
	actionsHandled   *prometheus.CounterVec
	actionsDuplicate prometheus.Counter
	activeSessions   prometheus.Gauge

	// Persistence metrics - local autosave and remote sync
	autosaveWrites   prometheus.Counter
	autosaveFailures prometheus.Counter
	autosaveLatency  prometheus.Histogram
	syncAttempts     prometheus.Counter
	syncFailures     prometheus.Counter
	syncSuperseded   prometheus.Counter
	syncLatency      prometheus.Histogram

	// Dashboard data access
	dataQueries      *prometheus.CounterVec
	dataQueryLatency prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	Configure()
}

// Configure rebuilds the global manager with opts on a fresh registry.
// Call it at startup, before metrics are served.
func Configure(opts ...Option) {
	customRegistry = prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(customRegistry)}, opts...)...)
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rinktrack",
		subsystem:        "tracker",
		histogramBuckets: latencyBucketsMs,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsRecorded = auto.NewCounterVec(m.counterOpts("events_recorded_total", "Events appended to a game log"), []string{"type"})
	m.eventsAmended = auto.NewCounter(m.counterOpts("events_amended_total", "Events amended after entry"))
	m.eventsRetracted = auto.NewCounter(m.counterOpts("events_retracted_total", "Events retracted from a game log"))
	m.undos = auto.NewCounter(m.counterOpts("undo_total", "Undo operations applied"))
	m.redos = auto.NewCounter(m.counterOpts("redo_total", "Redo operations applied"))
	m.shiftsStarted = auto.NewCounter(m.counterOpts("shifts_started_total", "Shifts opened"))
	m.shiftsEnded = auto.NewCounter(m.counterOpts("shifts_ended_total", "Shifts closed by a lineup change"))
	m.commandsRejected = auto.NewCounterVec(m.counterOpts("commands_rejected_total", "Tracker commands rejected, by error kind"), []string{"kind"})
	m.actionsHandled = auto.NewCounterVec(m.counterOpts("actions_total", "Dispatcher actions performed"), []string{"action"})
	m.actionsDuplicate = auto.NewCounter(m.counterOpts("actions_duplicate_total", "Action submissions acknowledged as duplicates"))
	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "Tracking sessions held in memory"))

	m.autosaveWrites = auto.NewCounter(m.counterOpts("autosave_writes_total", "Snapshots written to local storage"))
	m.autosaveFailures = auto.NewCounter(m.counterOpts("autosave_failures_total", "Failed local snapshot writes"))
	m.autosaveLatency = auto.NewHistogram(m.histogramOpts("autosave_latency_milliseconds", "Local snapshot write latency"))
	m.syncAttempts = auto.NewCounter(m.counterOpts("sync_attempts_total", "Remote snapshot pushes attempted"))
	m.syncFailures = auto.NewCounter(m.counterOpts("sync_failures_total", "Remote snapshot pushes that failed"))
	m.syncSuperseded = auto.NewCounter(m.counterOpts("sync_superseded_total", "Remote sync results discarded because a newer sync completed first"))
	m.syncLatency = auto.NewHistogram(m.histogramOpts("sync_latency_milliseconds", "Remote snapshot push latency including retries"))

	m.dataQueries = auto.NewCounterVec(m.counterOpts("data_queries_total", "Dashboard data queries by entity and outcome"), []string{"entity", "status"})
	m.dataQueryLatency = auto.NewHistogram(m.histogramOpts("data_query_latency_milliseconds", "Dashboard data query latency"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request latency"), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Live goroutines"))
}

// RecordEventRecorded counts an appended event of the given type.
func RecordEventRecorded(eventType string) {
	globalManager.eventsRecorded.WithLabelValues(eventType).Inc()
}

// RecordEventAmended counts an amended event.
func RecordEventAmended() { globalManager.eventsAmended.Inc() }

// RecordEventRetracted counts a retracted event.
func RecordEventRetracted() { globalManager.eventsRetracted.Inc() }

// RecordUndo counts an undo.
func RecordUndo() { globalManager.undos.Inc() }

// RecordRedo counts a redo.
func RecordRedo() { globalManager.redos.Inc() }

// RecordShiftStarted counts an opened shift.
func RecordShiftStarted() { globalManager.shiftsStarted.Inc() }

// RecordShiftEnded counts a closed shift.
func RecordShiftEnded() { globalManager.shiftsEnded.Inc() }

// RecordCommandRejected counts a rejected tracker command by error kind.
func RecordCommandRejected(kind string) {
	globalManager.commandsRejected.WithLabelValues(kind).Inc()
}

// RecordAction counts a performed dispatcher action.
func RecordAction(action string) {
	globalManager.actionsHandled.WithLabelValues(action).Inc()
}

// RecordActionDuplicate counts a deduplicated action submission.
func RecordActionDuplicate() { globalManager.actionsDuplicate.Inc() }

// UpdateActiveSessions sets the number of sessions in memory.
func UpdateActiveSessions(n int) { globalManager.activeSessions.Set(float64(n)) }

// RecordAutosave records one local snapshot write and its latency.
func RecordAutosave(latencyMs float64, err error) {
	globalManager.autosaveLatency.Observe(latencyMs)
	if err != nil {
		globalManager.autosaveFailures.Inc()
		return
	}
	globalManager.autosaveWrites.Inc()
}

// RecordSync records one remote sync and its latency.
func RecordSync(latencyMs float64, err error) {
	globalManager.syncAttempts.Inc()
	globalManager.syncLatency.Observe(latencyMs)
	if err != nil {
		globalManager.syncFailures.Inc()
	}
}

// RecordSyncSuperseded counts a sync result discarded in favor of a newer one.
func RecordSyncSuperseded() { globalManager.syncSuperseded.Inc() }

// RecordDataQuery records a dashboard query outcome and latency.
func RecordDataQuery(entity, status string, latencyMs float64) {
	globalManager.dataQueries.WithLabelValues(entity, status).Inc()
	globalManager.dataQueryLatency.Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage updates system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates system goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval reports how often gauge metrics should be refreshed.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
