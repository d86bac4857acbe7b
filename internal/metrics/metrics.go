// Package metrics provides Prometheus metrics for pinger.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/postalsys/pinger/internal/icmp"
)

const (
	namespace = "pinger"
)

// Metrics contains all Prometheus metrics for the prober.
type Metrics struct {
	// Socket metrics
	SocketsOpen   prometheus.Gauge
	SocketsOpened prometheus.Counter
	SocketsClosed prometheus.Counter

	// Probe metrics
	ProbesTotal *prometheus.CounterVec
	ProbeRTT    prometheus.Histogram
	BytesSent   prometheus.Counter

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec

	// Websocket metrics
	WebSocketSessions prometheus.Gauge
	WebSocketRejected prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SocketsOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sockets_open",
			Help:      "Number of currently open ICMP sockets",
		}),
		SocketsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sockets_opened_total",
			Help:      "Total number of ICMP sockets opened",
		}),
		SocketsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sockets_closed_total",
			Help:      "Total number of ICMP sockets closed",
		}),

		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total echo probes by outcome",
		}, []string{"outcome"}),
		ProbeRTT: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_rtt_seconds",
			Help:      "Histogram of echo round-trip times in seconds",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total ICMP bytes sent",
		}),

		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently running ping sessions",
		}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total ping sessions by how they ended",
		}, []string{"result"}),

		WebSocketSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions",
			Help:      "Number of connected websocket ping clients",
		}),
		WebSocketRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websocket_rejected_total",
			Help:      "Websocket ping clients rejected at the session limit",
		}),
	}
}

// SocketOpened records an ICMP socket being opened.
func (m *Metrics) SocketOpened() {
	m.SocketsOpen.Inc()
	m.SocketsOpened.Inc()
}

// SocketClosed records an ICMP socket being closed.
func (m *Metrics) SocketClosed() {
	m.SocketsOpen.Dec()
	m.SocketsClosed.Inc()
}

// ProbeCompleted records the outcome of one echo probe.
func (m *Metrics) ProbeCompleted(r icmp.Result, bytesSent int) {
	m.ProbesTotal.WithLabelValues(r.Outcome.String()).Inc()
	if bytesSent > 0 {
		m.BytesSent.Add(float64(bytesSent))
	}
	if r.OK() {
		m.ProbeRTT.Observe(r.Elapsed.Seconds())
	}
}

// RecordSessionStart records a ping session starting.
func (m *Metrics) RecordSessionStart() {
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a ping session ending. result is one of
// "completed", "stopped" or "failed".
func (m *Metrics) RecordSessionEnd(result string) {
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(result).Inc()
}

// RecordWebSocketConnect records a websocket client attaching.
func (m *Metrics) RecordWebSocketConnect() {
	m.WebSocketSessions.Inc()
}

// RecordWebSocketDisconnect records a websocket client leaving.
func (m *Metrics) RecordWebSocketDisconnect() {
	m.WebSocketSessions.Dec()
}

// RecordWebSocketRejected records a websocket client turned away.
func (m *Metrics) RecordWebSocketRejected() {
	m.WebSocketRejected.Inc()
}

var _ icmp.Observer = (*Metrics)(nil)
