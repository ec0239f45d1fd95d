package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection (grounded on hector's
// pkg/observability/metrics.go, with the subsystem set swapped from
// agent/rag/session to mission/pattern/watchdog).
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	missionPhases    *prometheus.CounterVec
	missionPhaseDur  *prometheus.HistogramVec
	missionRunning   *prometheus.GaugeVec

	patternNodes        *prometheus.CounterVec
	patternNodeDuration *prometheus.HistogramVec
	patternNodeErrors   *prometheus.CounterVec

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	watchdogEvents *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance from configuration.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{config: cfg, registry: prometheus.NewRegistry()}
	m.initMissionMetrics()
	m.initPatternMetrics()
	m.initLLMMetrics()
	m.initToolMetrics()
	m.initWatchdogMetrics()
	m.initHTTPMetrics()
	return m, nil
}

func (m *Metrics) initMissionMetrics() {
	m.missionPhases = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "mission", Name: "phases_total",
		Help: "Total number of mission phase transitions",
	}, []string{"phase_id", "status"})

	m.missionPhaseDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "mission", Name: "phase_duration_seconds",
		Help: "Mission phase duration in seconds", Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~2.3h
	}, []string{"phase_id"})

	m.missionRunning = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "mission", Name: "runs_active",
		Help: "Number of currently running missions",
	}, []string{"status"})

	m.registry.MustRegister(m.missionPhases, m.missionPhaseDur, m.missionRunning)
}

func (m *Metrics) initPatternMetrics() {
	m.patternNodes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "pattern", Name: "node_executions_total",
		Help: "Total number of pattern node executions",
	}, []string{"pattern_id", "node_type"})

	m.patternNodeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "pattern", Name: "node_duration_seconds",
		Help: "Pattern node execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	}, []string{"pattern_id", "node_type"})

	m.patternNodeErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "pattern", Name: "node_errors_total",
		Help: "Total number of pattern node execution errors",
	}, []string{"pattern_id", "node_type", "error_type"})

	m.registry.MustRegister(m.patternNodes, m.patternNodeDuration, m.patternNodeErrors)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM API calls",
	}, []string{"model", "provider"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "call_duration_seconds",
		Help: "LLM API call duration in seconds", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model", "provider"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Total number of input tokens consumed",
	}, []string{"model", "provider"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Total number of output tokens generated",
	}, []string{"model", "provider"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "errors_total",
		Help: "Total number of LLM API errors",
	}, []string{"model", "provider", "error_type"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of sandboxed tool invocations",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool errors",
	}, []string{"tool_name", "error_type"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

// initWatchdogMetrics mirrors the watchdog's endurance_metrics table
// (ts, metric, value, detail) as a counter family keyed by metric name, so
// the same failure events are visible in both the relational store (for
// historical queries) and Prometheus (for alerting).
func (m *Metrics) initWatchdogMetrics() {
	m.watchdogEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "watchdog", Name: "events_total",
		Help: "Total number of watchdog checks/events by metric name",
	}, []string{"metric"})

	m.registry.MustRegister(m.watchdogEvents)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration)
}

// RecordMissionPhase records a mission phase transition.
func (m *Metrics) RecordMissionPhase(phaseID, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.missionPhases.WithLabelValues(phaseID, status).Inc()
	if duration > 0 {
		m.missionPhaseDur.WithLabelValues(phaseID).Observe(duration.Seconds())
	}
}

// SetMissionsActive sets the gauge of currently running/paused missions.
func (m *Metrics) SetMissionsActive(status string, count int) {
	if m == nil {
		return
	}
	m.missionRunning.WithLabelValues(status).Set(float64(count))
}

// RecordPatternNode records a pattern node execution.
func (m *Metrics) RecordPatternNode(patternID, nodeType string, duration time.Duration) {
	if m == nil {
		return
	}
	m.patternNodes.WithLabelValues(patternID, nodeType).Inc()
	m.patternNodeDuration.WithLabelValues(patternID, nodeType).Observe(duration.Seconds())
}

// RecordPatternNodeError records a pattern node execution error.
func (m *Metrics) RecordPatternNodeError(patternID, nodeType, errorType string) {
	if m == nil {
		return
	}
	m.patternNodeErrors.WithLabelValues(patternID, nodeType, errorType).Inc()
}

func (m *Metrics) RecordLLMCall(model, provider string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, provider).Inc()
	m.llmCallDuration.WithLabelValues(model, provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMTokens(model, provider string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model, provider).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model, provider).Add(float64(outputTokens))
}

func (m *Metrics) RecordLLMError(model, provider, errorType string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, provider, errorType).Inc()
}

func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

func (m *Metrics) RecordToolError(toolName, errorType string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName, errorType).Inc()
}

// RecordWatchdogEvent mirrors WatchdogStore.LogMetric's (metric, value,
// detail) write into a Prometheus counter; value/detail stay in the
// relational store only, since Prometheus labels should stay low-cardinality.
func (m *Metrics) RecordWatchdogEvent(metric string) {
	if m == nil {
		return
	}
	m.watchdogEvents.WithLabelValues(metric).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	status := statusCodeLabel(statusCode)
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
