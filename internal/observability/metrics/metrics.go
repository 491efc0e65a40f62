// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ai_speech_diarization"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Connection / stream metrics
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	StreamsTotal      prometheus.Counter
	StreamsActive     prometheus.Gauge
	StreamDuration    prometheus.Histogram

	// Session metrics
	SessionsCreated prometheus.Counter
	SessionsClosed  prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioChunksReceived prometheus.Counter
	SequenceWarnings    prometheus.Counter

	// Diarization metrics
	DiarizationWindows  prometheus.Counter
	SpeakerSegments     prometheus.Counter
	TokensAligned       prometheus.Counter

	// Transcript metrics
	TranscriptsPartial prometheus.Counter
	TranscriptsFinal   prometheus.Counter

	// Keyword / notification metrics
	KeywordEvents        *prometheus.CounterVec
	NotifyPublishTotal   *prometheus.CounterVec
	NotifyPublishErrors  *prometheus.CounterVec
	NotifyPublishLatency prometheus.Histogram
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of WebSocket connections accepted",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently open WebSocket connections",
		}),
		StreamsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total number of audio streams started",
		}),
		StreamsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of currently active audio streams",
		}),
		StreamDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stream_duration_seconds",
			Help:      "Duration of audio streams in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}),

		SessionsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Total number of sessions created",
		}),
		SessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_closed_total",
			Help:      "Total number of sessions fully closed",
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks received",
		}),
		SequenceWarnings: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sequence_warnings_total",
			Help:      "Total chunk sequence mismatches observed (non-fatal)",
		}),

		DiarizationWindows: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diarization_windows_total",
			Help:      "Total fixed-size analysis windows processed",
		}),
		SpeakerSegments: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_segments_total",
			Help:      "Total speaker segments appended",
		}),
		TokensAligned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_aligned_total",
			Help:      "Total tokens assigned a speaker label",
		}),

		TranscriptsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_partial_total",
			Help:      "Total partial transcript groups received",
		}),
		TranscriptsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_final_total",
			Help:      "Total final transcript groups received",
		}),

		KeywordEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyword_events_total",
			Help:      "Total keyword events detected",
		}, []string{"event_code"}),
		NotifyPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_publish_total",
			Help:      "Total notification events published",
		}, []string{"event_code"}),
		NotifyPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notify_publish_errors_total",
			Help:      "Total notification publish errors",
		}, []string{"event_code"}),
		NotifyPublishLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notify_publish_latency_seconds",
			Help:      "Notification publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}),
	}
}

// RecordConnectionOpen records a new WebSocket connection.
func (m *Metrics) RecordConnectionOpen() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// RecordConnectionClose records a WebSocket connection closing.
func (m *Metrics) RecordConnectionClose() {
	m.ConnectionsActive.Dec()
}

// RecordStreamStart records a new audio stream starting.
func (m *Metrics) RecordStreamStart() {
	m.StreamsTotal.Inc()
	m.StreamsActive.Inc()
}

// RecordStreamEnd records an audio stream ending.
func (m *Metrics) RecordStreamEnd(durationSeconds float64) {
	m.StreamsActive.Dec()
	m.StreamDuration.Observe(durationSeconds)
}

// RecordAudioReceived records audio bytes and one chunk received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioChunksReceived.Inc()
}

// RecordSequenceWarning records a chunk ordering mismatch.
func (m *Metrics) RecordSequenceWarning() {
	m.SequenceWarnings.Inc()
}

// RecordWindowProcessed records one diarization window drained.
func (m *Metrics) RecordWindowProcessed() {
	m.DiarizationWindows.Inc()
}

// RecordSegmentAppended records a new speaker segment.
func (m *Metrics) RecordSegmentAppended() {
	m.SpeakerSegments.Inc()
}

// RecordKeywordEvent records a detected keyword trigger.
func (m *Metrics) RecordKeywordEvent(eventCode string) {
	m.KeywordEvents.WithLabelValues(eventCode).Inc()
}

// RecordNotifyPublish records a notification publish attempt.
func (m *Metrics) RecordNotifyPublish(eventCode string, err error, latencySeconds float64) {
	m.NotifyPublishTotal.WithLabelValues(eventCode).Inc()
	m.NotifyPublishLatency.Observe(latencySeconds)
	if err != nil {
		m.NotifyPublishErrors.WithLabelValues(eventCode).Inc()
	}
}
