package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the report service
type Metrics struct {
	// Model lifecycle metrics
	ModelLoads        *prometheus.CounterVec
	ModelLoadDuration prometheus.Histogram
	ModelResident     prometheus.Gauge
	ModelWaiters      prometheus.Gauge
	LoadExhausted     prometheus.Counter

	// Transcription metrics
	TranscriptionRequests  prometheus.Counter
	TranscriptionSuccesses prometheus.Counter
	TranscriptionFailures  prometheus.Counter
	TranscriptionDuration  prometheus.Histogram

	// Generation metrics
	Generations         *prometheus.CounterVec
	GenerationFallbacks *prometheus.CounterVec
	GenerationDuration  *prometheus.HistogramVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ModelLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audioreport_model_loads_total",
			Help: "Speech model load attempts by tier and result",
		}, []string{"tier", "result"}),
		ModelLoadDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audioreport_model_load_duration_seconds",
			Help:    "Time spent loading a speech model tier",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
		ModelResident: f.NewGauge(prometheus.GaugeOpts{
			Name: "audioreport_model_resident",
			Help: "1 while a speech model holds the slot",
		}),
		ModelWaiters: f.NewGauge(prometheus.GaugeOpts{
			Name: "audioreport_model_slot_waiters",
			Help: "Requests queued for the speech model slot",
		}),
		LoadExhausted: f.NewCounter(prometheus.CounterOpts{
			Name: "audioreport_model_load_exhausted_total",
			Help: "Acquisitions that failed at every tier",
		}),

		TranscriptionRequests: f.NewCounter(prometheus.CounterOpts{
			Name: "audioreport_transcription_requests_total",
			Help: "Total number of transcription requests",
		}),
		TranscriptionSuccesses: f.NewCounter(prometheus.CounterOpts{
			Name: "audioreport_transcription_successes_total",
			Help: "Total number of successful transcriptions",
		}),
		TranscriptionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "audioreport_transcription_failures_total",
			Help: "Total number of failed transcriptions",
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "audioreport_transcription_duration_seconds",
			Help:    "Duration of transcription requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4 minutes
		}),

		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audioreport_generations_total",
			Help: "Generated documents by kind and method",
		}, []string{"kind", "method"}),
		GenerationFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audioreport_generation_fallbacks_total",
			Help: "Remote generation failures that switched to the local path",
		}, []string{"kind"}),
		GenerationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audioreport_generation_duration_seconds",
			Help:    "Duration of report and correction requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~3 minutes
		}, []string{"kind", "method"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "audioreport_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "audioreport_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
	}
}

// RecordModelLoad records one tier attempt
func (m *Metrics) RecordModelLoad(tier string, ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ModelLoads.WithLabelValues(tier, result).Inc()
	m.ModelLoadDuration.Observe(durationSeconds)
}

// RecordLoadExhausted increments the exhausted-ladder counter
func (m *Metrics) RecordLoadExhausted() {
	if m == nil {
		return
	}
	m.LoadExhausted.Inc()
}

// SetModelResident flips the residency gauge
func (m *Metrics) SetModelResident(resident bool) {
	if m == nil {
		return
	}
	if resident {
		m.ModelResident.Set(1)
	} else {
		m.ModelResident.Set(0)
	}
}

// AddWaiter adjusts the slot queue gauge by delta
func (m *Metrics) AddWaiter(delta float64) {
	if m == nil {
		return
	}
	m.ModelWaiters.Add(delta)
}

// RecordTranscriptionRequest increments transcription requests counter
func (m *Metrics) RecordTranscriptionRequest() {
	if m == nil {
		return
	}
	m.TranscriptionRequests.Inc()
}

// RecordTranscriptionSuccess records a successful transcription
func (m *Metrics) RecordTranscriptionSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionSuccesses.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordTranscriptionFailure records a failed transcription
func (m *Metrics) RecordTranscriptionFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.TranscriptionFailures.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
}

// RecordGeneration records a finished report or correction
func (m *Metrics) RecordGeneration(kind, method string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(kind, method).Inc()
	m.GenerationDuration.WithLabelValues(kind, method).Observe(durationSeconds)
}

// RecordFallback records a switch from the remote to the local path
func (m *Metrics) RecordFallback(kind string) {
	if m == nil {
		return
	}
	m.GenerationFallbacks.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}
