package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_gateway_active_sessions",
		Help: "Number of active dictation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_sessions_total",
		Help: "Total number of dictation sessions",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_session_duration_seconds",
		Help:    "Duration of dictation sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Transcript metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_transcript_events_total",
		Help: "Total transcript events forwarded to clients",
	}, []string{"kind"}) // kind: "interim" or "final"

	// Audio metrics
	audioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_audio_bytes_total",
		Help: "Total audio bytes forwarded to the recognition backend",
	})

	droppedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_dropped_audio_chunks_total",
		Help: "Audio chunks received outside an active streaming window",
	})

	// Enhancement metrics
	enhancementRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_enhancement_requests_total",
		Help: "Total enhancement requests",
	}, []string{"status"})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})
)

// SessionMetrics tracks metrics for a single dictation session
type SessionMetrics struct {
	sessionID string
	startTime time.Time
}

// NewSessionMetrics creates a metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordTranscript records one forwarded transcript event
func RecordTranscript(isFinal bool) {
	kind := "interim"
	if isFinal {
		kind = "final"
	}
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordAudioBytes records audio bytes forwarded to the backend
func RecordAudioBytes(n int) {
	audioBytes.Add(float64(n))
}

// RecordDroppedChunk records an audio chunk dropped outside the streaming window
func RecordDroppedChunk() {
	droppedChunks.Inc()
}

// RecordEnhancement records one enhancement request by status
func RecordEnhancement(status string) {
	enhancementRequests.WithLabelValues(status).Inc()
}

// RecordError records an error by type and component
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
