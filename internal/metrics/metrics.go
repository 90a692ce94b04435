// ABOUTME: Prometheus metrics for narration sessions
// ABOUTME: Implements the narrator recorder and serves a private registry
package metrics

import (
	"net/http"
	"time"

	"github.com/harperreed/narrator-go/pkg/narrator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "narrator"

// Metrics holds the narrator's Prometheus collectors
type Metrics struct {
	registry         *prometheus.Registry
	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	bytesReceived    prometheus.Counter
	buffersScheduled prometheus.Counter
	audioSeconds     prometheus.Counter
	firstAudio       prometheus.Histogram
	activeSessions   prometheus.Gauge
	requestsTotal    *prometheus.CounterVec
}

var _ narrator.Recorder = (*Metrics)(nil)

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Spans sent to the TTS service",
		}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_finished_total",
			Help:      "Spans that ended, by final state",
		}, []string{"state"}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Audio bytes received from the TTS service, headers included",
		}),
		buffersScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "buffers_scheduled_total",
			Help:      "Audio buffers scheduled on the output",
		}),
		audioSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduled_audio_seconds_total",
			Help:      "Seconds of audio scheduled on the output",
		}),
		firstAudio: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "first_audio_seconds",
			Help:      "Time from request to the first scheduled buffer",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Spans currently streaming or playing",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_requests_total",
			Help:      "Control API requests by status class",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		m.sessionsStarted,
		m.sessionsFinished,
		m.bytesReceived,
		m.buffersScheduled,
		m.audioSeconds,
		m.firstAudio,
		m.activeSessions,
		m.requestsTotal,
	)
	return m
}

// SessionStarted counts a new span
func (m *Metrics) SessionStarted() {
	m.sessionsStarted.Inc()
	m.activeSessions.Inc()
}

// SessionFinished counts a span ending in state
func (m *Metrics) SessionFinished(state narrator.State, _ int64) {
	m.sessionsFinished.WithLabelValues(string(state)).Inc()
	m.activeSessions.Dec()
}

// FirstAudio observes time to first audio
func (m *Metrics) FirstAudio(latency time.Duration) {
	m.firstAudio.Observe(latency.Seconds())
}

// BufferScheduled counts a scheduled buffer of the given length
func (m *Metrics) BufferScheduled(seconds float64) {
	m.buffersScheduled.Inc()
	m.audioSeconds.Add(seconds)
}

// BytesReceived adds received stream bytes
func (m *Metrics) BytesReceived(n int) {
	m.bytesReceived.Add(float64(n))
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
