// Package metrics exposes Prometheus counters for the dictation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors. Each instance owns its registry
// so repeated construction never collides on registration.
type Metrics struct {
	registry *prometheus.Registry

	// Capture pipeline
	FramesCaptured prometheus.Counter
	FramesDropped  prometheus.Counter
	QueueDepth     prometheus.Gauge
	AudioLevel     prometheus.Gauge

	// Sessions
	SessionsStarted prometheus.Counter
	SessionOutcomes *prometheus.CounterVec
	SessionDuration prometheus.Histogram

	// Transcription
	PartialsReceived      prometheus.Counter
	TranscriptionDuration *prometheus.HistogramVec
	ProviderFallbacks     prometheus.Counter
	ProviderErrors        *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		FramesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicton_frames_captured_total",
			Help: "Total number of audio frames captured",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicton_frames_dropped_total",
			Help: "Total number of audio frames evicted from a full queue",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dicton_frame_queue_depth",
			Help: "Current number of frames buffered in the capture queue",
		}),
		AudioLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dicton_audio_level",
			Help: "Smoothed RMS level of captured audio, 0 to 1",
		}),

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicton_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dicton_sessions_finished_total",
			Help: "Total number of sessions by terminal outcome",
		}, []string{"outcome"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dicton_session_duration_seconds",
			Help:    "Wall-clock duration of recording sessions",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),

		PartialsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicton_partials_received_total",
			Help: "Total number of partial transcripts received",
		}),
		TranscriptionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dicton_transcription_duration_seconds",
			Help:    "Time from end of audio to final transcript",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}, []string{"provider"}),
		ProviderFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "dicton_provider_fallbacks_total",
			Help: "Total number of times selection fell back past an unavailable provider",
		}),
		ProviderErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dicton_provider_errors_total",
			Help: "Total number of provider request failures",
		}, []string{"provider"}),
	}
}

// Registry exposes the backing registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordFrame(evicted int, depth int) {
	m.FramesCaptured.Inc()
	m.FramesDropped.Add(float64(evicted))
	m.QueueDepth.Set(float64(depth))
}

func (m *Metrics) RecordSessionStart() {
	m.SessionsStarted.Inc()
}

func (m *Metrics) RecordSessionEnd(outcome string, durationSeconds float64) {
	m.SessionOutcomes.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordPartial() {
	m.PartialsReceived.Inc()
}

func (m *Metrics) RecordTranscription(provider string, durationSeconds float64) {
	m.TranscriptionDuration.WithLabelValues(provider).Observe(durationSeconds)
}

func (m *Metrics) RecordProviderError(provider string) {
	m.ProviderErrors.WithLabelValues(provider).Inc()
}

func (m *Metrics) RecordFallback() {
	m.ProviderFallbacks.Inc()
}
