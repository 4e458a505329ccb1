package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all Prometheus metrics for the summary chat service.
// All recording methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Markup metrics
	MarkupRenders    prometheus.Counter
	MarkupRenderTime prometheus.Histogram

	// Audio metrics
	AudioAssemblies    *prometheus.CounterVec
	AudioChunks        prometheus.Counter
	AudioDecodeDefects prometheus.Counter
	AudioBytes         prometheus.Histogram
	AudioLiveHandles   prometheus.Gauge

	// Summarizer metrics
	SummarizerRequests  prometheus.Counter
	SummarizerSuccesses prometheus.Counter
	SummarizerFailures  prometheus.Counter
	SummarizerRetries   prometheus.Counter
	SummarizerDuration  prometheus.Histogram

	// Chat session metrics
	ActiveSessions  prometheus.Gauge
	SessionsCreated prometheus.Counter
	SessionsRemoved *prometheus.CounterVec

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics on a fresh registry that also carries the
// Go runtime and process collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		// Markup metrics
		MarkupRenders: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_markup_renders_total",
			Help: "Total number of summaries rendered to HTML",
		}),
		MarkupRenderTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "summary_chat_markup_render_duration_seconds",
			Help:    "Time spent rendering summaries to HTML",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10us to ~160ms
		}),

		// Audio metrics
		AudioAssemblies: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_chat_audio_assemblies_total",
			Help: "Total number of audio assemblies by result",
		}, []string{"result"}),
		AudioChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_audio_chunks_total",
			Help: "Total number of audio chunks received for assembly",
		}),
		AudioDecodeDefects: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_audio_decode_defects_total",
			Help: "Total number of audio chunks dropped because they failed to decode",
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "summary_chat_audio_assembled_bytes",
			Help:    "Size of assembled audio resources in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 9), // 1KB to ~64MB
		}),
		AudioLiveHandles: factory.NewGauge(prometheus.GaugeOpts{
			Name: "summary_chat_audio_live_handles",
			Help: "Current number of unreleased audio handles",
		}),

		// Summarizer metrics
		SummarizerRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_summarizer_requests_total",
			Help: "Total number of summarization requests sent",
		}),
		SummarizerSuccesses: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_summarizer_successes_total",
			Help: "Total number of successful summarization requests",
		}),
		SummarizerFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_summarizer_failures_total",
			Help: "Total number of failed summarization requests",
		}),
		SummarizerRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_summarizer_retries_total",
			Help: "Total number of summarization request retries",
		}),
		SummarizerDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "summary_chat_summarizer_duration_seconds",
			Help:    "Duration of summarization requests",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),

		// Chat session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "summary_chat_active_sessions",
			Help: "Current number of chat sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "summary_chat_sessions_created_total",
			Help: "Total number of chat sessions created",
		}),
		SessionsRemoved: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_chat_sessions_removed_total",
			Help: "Total number of chat sessions removed by reason",
		}, []string{"reason"}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_chat_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "summary_chat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_chat_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// Registry returns the registry holding every metric
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordMarkupRender records one summary rendered to HTML
func (m *Metrics) RecordMarkupRender(durationSeconds float64) {
	if m == nil {
		return
	}
	m.MarkupRenders.Inc()
	m.MarkupRenderTime.Observe(durationSeconds)
}

// ObserveAssembly records the outcome of one audio assembly
func (m *Metrics) ObserveAssembly(result string, chunks, defects, bytes int) {
	if m == nil {
		return
	}
	m.AudioAssemblies.WithLabelValues(result).Inc()
	m.AudioChunks.Add(float64(chunks))
	m.AudioDecodeDefects.Add(float64(defects))
	if bytes > 0 {
		m.AudioBytes.Observe(float64(bytes))
	}
}

// SetLiveHandles sets the current number of unreleased audio handles
func (m *Metrics) SetLiveHandles(count int) {
	if m == nil {
		return
	}
	m.AudioLiveHandles.Set(float64(count))
}

// RecordSummarizerRequest increments summarization requests counter
func (m *Metrics) RecordSummarizerRequest() {
	if m == nil {
		return
	}
	m.SummarizerRequests.Inc()
}

// RecordSummarizerSuccess records a successful summarization
func (m *Metrics) RecordSummarizerSuccess(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SummarizerSuccesses.Inc()
	m.SummarizerDuration.Observe(durationSeconds)
}

// RecordSummarizerFailure records a failed summarization
func (m *Metrics) RecordSummarizerFailure(durationSeconds float64) {
	if m == nil {
		return
	}
	m.SummarizerFailures.Inc()
	m.SummarizerDuration.Observe(durationSeconds)
}

// RecordSummarizerRetry increments the retry counter
func (m *Metrics) RecordSummarizerRetry() {
	if m == nil {
		return
	}
	m.SummarizerRetries.Inc()
}

// SetActiveSessions sets the current number of chat sessions
func (m *Metrics) SetActiveSessions(count int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.SessionsCreated.Inc()
}

// RecordSessionRemoved increments the sessions removed counter.
// reason is "closed", "expired" or "shutdown".
func (m *Metrics) RecordSessionRemoved(reason string) {
	if m == nil {
		return
	}
	m.SessionsRemoved.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	if m == nil {
		return
	}
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
