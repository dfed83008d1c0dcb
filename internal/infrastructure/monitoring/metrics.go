package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter

	// Block metrics
	BlocksOpened    *prometheus.CounterVec
	BlocksCompleted *prometheus.CounterVec
	BytesFramed     prometheus.Counter
	DroppedEvents   *prometheus.CounterVec

	// Suggestion metrics
	SuggestDuration prometheus.Histogram

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for JSON API
type Snapshot struct {
	TotalRequests   int64
	TotalErrors     int64
	ActiveSessions  int64
	BlocksOpened    int64
	BlocksCompleted int64
	BytesFramed     int64
	DroppedEvents   int64
}

// New creates a new metrics collector
func New() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warp_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warp_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Session metrics
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "warp_sessions_active",
				Help: "Number of live shell sessions",
			},
		),
		SessionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warp_sessions_total",
				Help: "Total number of shell sessions created",
			},
		),

		// Block metrics
		BlocksOpened: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warp_blocks_opened_total",
				Help: "Total number of command blocks opened",
			},
			[]string{"origin"},
		),
		BlocksCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warp_blocks_completed_total",
				Help: "Total number of command blocks completed",
			},
			[]string{"state"},
		),
		BytesFramed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "warp_bytes_framed_total",
				Help: "Total shell output bytes attributed to blocks",
			},
		),
		DroppedEvents: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warp_block_events_dropped_total",
				Help: "Block log events dropped by kind",
			},
			[]string{"kind"},
		),

		// Suggestion metrics
		SuggestDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "warp_suggest_query_duration_seconds",
				Help:    "Suggestion query latency in seconds",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
			},
		),

		// WebSocket metrics
		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "warp_ws_connections",
				Help: "Number of active WebSocket stream subscribers",
			},
		),
		WSMessages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warp_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "warp_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status[0] == '4' || status[0] == '5' {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordBlockOpened records one opened block by origin kind
func (m *Metrics) RecordBlockOpened(origin string) {
	m.BlocksOpened.WithLabelValues(origin).Inc()
	m.mu.Lock()
	m.snapshot.BlocksOpened++
	m.mu.Unlock()
}

// RecordBlockCompleted records one completed block by terminal state
func (m *Metrics) RecordBlockCompleted(state string) {
	m.BlocksCompleted.WithLabelValues(state).Inc()
	m.mu.Lock()
	m.snapshot.BlocksCompleted++
	m.mu.Unlock()
}

// RecordBytesFramed records output bytes attributed to blocks
func (m *Metrics) RecordBytesFramed(n int) {
	m.BytesFramed.Add(float64(n))
	m.mu.Lock()
	m.snapshot.BytesFramed += int64(n)
	m.mu.Unlock()
}

// RecordDroppedEvent records one dropped block log event by kind
func (m *Metrics) RecordDroppedEvent(kind string) {
	m.DroppedEvents.WithLabelValues(kind).Inc()
	m.mu.Lock()
	m.snapshot.DroppedEvents++
	m.mu.Unlock()
}

// ObserveSuggestQuery records one suggestion query's latency
func (m *Metrics) ObserveSuggestQuery(duration time.Duration) {
	m.SuggestDuration.Observe(duration.Seconds())
}

// SetSessionsActive sets the number of live sessions
func (m *Metrics) SetSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
	m.mu.Lock()
	m.snapshot.ActiveSessions = int64(count)
	m.mu.Unlock()
}

// IncSessionsTotal increments the sessions created counter
func (m *Metrics) IncSessionsTotal() {
	m.SessionsTotal.Inc()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// GetSnapshot returns current metric values for the JSON stats endpoint
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
