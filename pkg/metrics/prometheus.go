// Package metrics provides Prometheus metrics for the mural service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the mural service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Feed activity
	impactsLogged        *prometheus.CounterVec
	prayerRequests       prometheus.Counter
	supportToggles       *prometheus.CounterVec
	duplicateSubmissions prometheus.Counter
	publishFailures      *prometheus.CounterVec

	// Board state
	boardSize   prometheus.Gauge
	memberCount prometheus.Gauge
	sessions    prometheus.Gauge

	// Reconciliation
	snapshotsMerged        *prometheus.CounterVec
	snapshotsStale         *prometheus.CounterVec
	snapshotRecordsSkipped *prometheus.CounterVec

	// Repository
	snapshotsPublished *prometheus.CounterVec
	storeLatency       *prometheus.HistogramVec
	storeErrors        *prometheus.CounterVec

	// Outbox queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Outbox workers
	workerCount             prometheus.Gauge
	workerActive            prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Mission text
	missionRefreshes *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "mural",
		subsystem:        "feed",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		constLabels:      map[string]string{},
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

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.impactsLogged = auto.NewCounterVec(m.counter("impacts_logged_total",
		"Impact events logged, by action kind"), []string{"kind"})
	m.prayerRequests = auto.NewCounter(m.counter("prayer_requests_total",
		"Prayer requests submitted"))
	m.supportToggles = auto.NewCounterVec(m.counter("support_toggles_total",
		"Support marks toggled, by collection and resulting state"), []string{"collection", "state"})
	m.duplicateSubmissions = auto.NewCounter(m.counter("duplicate_submissions_total",
		"Publish retries recognised as already submitted"))
	m.publishFailures = auto.NewCounterVec(m.counter("publish_failures_total",
		"Writes rejected by the persistence collaborator, by collection"), []string{"collection"})

	m.boardSize = auto.NewGauge(m.gauge("board_size", "Impact events currently on the board"))
	m.memberCount = auto.NewGauge(m.gauge("members", "Members known to the feed"))
	m.sessions = auto.NewGauge(m.gauge("sessions", "Live member sessions"))

	m.snapshotsMerged = auto.NewCounterVec(m.counter("snapshots_merged_total",
		"Snapshots merged into session view state"), []string{"collection"})
	m.snapshotsStale = auto.NewCounterVec(m.counter("snapshots_stale_total",
		"Snapshots ignored because a newer version was already merged"), []string{"collection"})
	m.snapshotRecordsSkipped = auto.NewCounterVec(m.counter("snapshot_records_skipped_total",
		"Malformed records skipped while building snapshots"), []string{"collection"})

	m.snapshotsPublished = auto.NewCounterVec(m.counter("repository_snapshots_published_total",
		"Snapshots published to subscribers"), []string{"collection"})
	m.storeLatency = auto.NewHistogramVec(m.histogram("repository_latency_milliseconds",
		"Repository operation latency in milliseconds"), []string{"op"})
	m.storeErrors = auto.NewCounterVec(m.counter("repository_errors_total",
		"Repository operation errors"), []string{"op"})

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Writes waiting in the outbox queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Outbox queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueue_total", "Writes enqueued"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeue_total", "Writes dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total",
		"Writes rejected because the outbox was full or closed"))

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Outbox workers running"))
	m.workerActive = auto.NewGauge(m.gauge("worker_active_count", "Outbox workers delivering a write"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("worker_processing_latency_milliseconds",
		"Time to deliver one write in milliseconds"))
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Failed write deliveries"))

	m.missionRefreshes = auto.NewCounterVec(m.counter("mission_refreshes_total",
		"Mission text refreshes by result"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total",
		"HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.rateLimited = auto.NewCounterVec(m.counter("http_rate_limited_total",
		"Requests rejected by the per-member rate limiter"), []string{"endpoint"})
}

// RecordImpactLogged counts one impact event of the given kind.
func RecordImpactLogged(kind string) {
	globalManager.impactsLogged.WithLabelValues(kind).Inc()
}

// RecordPrayerRequest counts one submitted prayer request.
func RecordPrayerRequest() {
	globalManager.prayerRequests.Inc()
}

// RecordSupportToggle counts a support toggle; on reports the resulting state.
func RecordSupportToggle(collection string, on bool) {
	state := "off"
	if on {
		state = "on"
	}
	globalManager.supportToggles.WithLabelValues(collection, state).Inc()
}

// RecordDuplicateSubmission counts a retried publish that was already accepted.
func RecordDuplicateSubmission() {
	globalManager.duplicateSubmissions.Inc()
}

// RecordPublishFailure counts a write the store rejected.
func RecordPublishFailure(collection string) {
	globalManager.publishFailures.WithLabelValues(collection).Inc()
}

// UpdateBoardSize sets the number of events on the board.
func UpdateBoardSize(n int) {
	globalManager.boardSize.Set(float64(n))
}

// UpdateMemberCount sets the number of known members.
func UpdateMemberCount(n int) {
	globalManager.memberCount.Set(float64(n))
}

// UpdateSessionCount sets the number of live sessions.
func UpdateSessionCount(n int) {
	globalManager.sessions.Set(float64(n))
}

// RecordSnapshotMerged counts a snapshot merged into a view.
func RecordSnapshotMerged(collection string) {
	globalManager.snapshotsMerged.WithLabelValues(collection).Inc()
}

// RecordSnapshotStale counts a snapshot dropped for being older than the view.
func RecordSnapshotStale(collection string) {
	globalManager.snapshotsStale.WithLabelValues(collection).Inc()
}

// RecordSnapshotRecordsSkipped counts malformed records left out of a snapshot.
func RecordSnapshotRecordsSkipped(collection string, n int) {
	if n <= 0 {
		return
	}
	globalManager.snapshotRecordsSkipped.WithLabelValues(collection).Add(float64(n))
}

// RecordSnapshotPublished counts a snapshot fanned out by the repository.
func RecordSnapshotPublished(collection string) {
	globalManager.snapshotsPublished.WithLabelValues(collection).Inc()
}

// RecordStoreLatency records a repository operation latency in milliseconds.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed repository operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue counts an enqueued write.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a dequeued write.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a rejected enqueue.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive adjusts the number of workers currently delivering a write.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordWorkerProcessingLatency records write delivery latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed delivery.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordMissionRefresh counts a mission refresh; result is "ok" or "fallback".
func RecordMissionRefresh(result string) {
	globalManager.missionRefreshes.WithLabelValues(result).Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
