package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_gateway_active_sessions",
		Help: "Number of active live dictation sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_sessions_total",
		Help: "Total number of dictation sessions started",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_session_duration_seconds",
		Help:    "Duration of dictation sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	// Transcript metrics
	transcriptEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_transcript_events_total",
		Help: "Total number of transcript events received from the STT upstream",
	}, []string{"kind"}) // kind: "interim" or "final"

	// STT metrics
	sttStarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_stt_starts_total",
		Help: "Total number of STT connection attempts",
	}, []string{"status"})

	// Summary metrics
	summaryRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_summary_requests_total",
		Help: "Total number of summary generation requests",
	}, []string{"status"})

	summaryLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_summary_latency_seconds",
		Help:    "Summary generation latency in seconds",
		Buckets: []float64{0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
	})

	// Persistence metrics
	persistRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_persist_requests_total",
		Help: "Total number of document store writes",
	}, []string{"status"})

	persistLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_persist_latency_seconds",
		Help:    "Document store write latency in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dictation_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_audio_bytes_total",
		Help: "Total audio bytes received from clients",
	})
)

// Metrics tracks metrics for a single dictation session
type Metrics struct {
	sessionID        string
	startTime        time.Time
	summaryStartTime time.Time
	persistStartTime time.Time
	mu               sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *Metrics {
	return &Metrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *Metrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *Metrics) RecordSessionEnd() {
	activeSessions.Dec()
	duration := time.Since(m.startTime).Seconds()
	sessionDuration.Observe(duration)
}

// RecordTranscriptEvent records one transcript event by kind
func (m *Metrics) RecordTranscriptEvent(isFinal bool) {
	kind := "interim"
	if isFinal {
		kind = "final"
	}
	transcriptEvents.WithLabelValues(kind).Inc()
}

// RecordSTTStart records the outcome of an STT connection attempt
func (m *Metrics) RecordSTTStart(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sttStarts.WithLabelValues(status).Inc()
}

// RecordSummaryStart records the start of summary generation
func (m *Metrics) RecordSummaryStart() {
	m.mu.Lock()
	m.summaryStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSummaryEnd records the end of summary generation
func (m *Metrics) RecordSummaryEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.summaryStartTime.IsZero() {
		summaryLatency.Observe(time.Since(m.summaryStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	summaryRequests.WithLabelValues(status).Inc()
}

// RecordPersistStart records the start of a document store write
func (m *Metrics) RecordPersistStart() {
	m.mu.Lock()
	m.persistStartTime = time.Now()
	m.mu.Unlock()
}

// RecordPersistEnd records the end of a document store write
func (m *Metrics) RecordPersistEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.persistStartTime.IsZero() {
		persistLatency.Observe(time.Since(m.persistStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	persistRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *Metrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes received from a client
func (m *Metrics) RecordAudioBytes(bytes int64) {
	audioBytesReceived.Add(float64(bytes))
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
