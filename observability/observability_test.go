package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_DisabledReturnsNil(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMetrics_RecordAndScrape(t *testing.T) {
	m, err := NewMetrics(&MetricsConfig{Enabled: true, Namespace: "conductor_test"})
	require.NoError(t, err)
	require.NotNil(t, m)

	m.RecordMissionPhase("design", "done", 2*time.Second)
	m.RecordPatternNode("debate", "round", 500*time.Millisecond)
	m.RecordLLMCall("claude-3", "anthropic", 300*time.Millisecond)
	m.RecordLLMTokens("claude-3", "anthropic", 100, 50)
	m.RecordToolCall("run_command", 10*time.Millisecond)
	m.RecordWatchdogEvent("stall_detected")
	m.RecordHTTPRequest("POST", "/missions", 201, 5*time.Millisecond)

	metricFamilies, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, metricFamilies)
}

func TestMetrics_NilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordMissionPhase("design", "done", time.Second)
		m.RecordLLMCall("x", "y", time.Second)
		m.RecordToolError("x", "timeout")
		m.Handler()
	})
}

func TestNewTracer_DisabledReturnsNil(t *testing.T) {
	tr, err := NewTracer(context.Background(), &TracingConfig{Enabled: false})
	require.NoError(t, err)
	assert.Nil(t, tr)
}

func TestTracer_StartSpansAndDebugExporter(t *testing.T) {
	debug := NewDebugExporter()
	cfg := &TracingConfig{Enabled: true, ServiceName: "conductor-test", SamplingRate: 1}

	tr, err := NewTracer(context.Background(), cfg, WithDebugExporter(debug))
	require.NoError(t, err)
	require.NotNil(t, tr)
	defer tr.Shutdown(context.Background())

	ctx, span := tr.StartMissionRun(context.Background(), "mis-1")
	_, nodeSpan := tr.StartNodeExecute(ctx, "debate", "round-1")
	nodeSpan.End()
	span.End()

	assert.Eventually(t, func() bool { return debug.Count() == 2 }, time.Second, 10*time.Millisecond)
}

func TestManager_NilConfigIsAllDisabled(t *testing.T) {
	m, err := NewManager(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, m.Tracer())
	assert.Nil(t, m.Metrics())
	assert.Equal(t, DefaultMetricsPath, m.MetricsEndpoint())
}
