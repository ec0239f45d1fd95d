package observability

import (
	"net/http"
	"time"
)

// Recorder is the interface mission/pattern/watchdog/server code depends on,
// so a nil *Metrics (observability disabled) and a live *Metrics both
// satisfy the same shape (grounded on hector's pkg/observability/noop.go
// Recorder pattern).
type Recorder interface {
	RecordMissionPhase(phaseID, status string, duration time.Duration)
	SetMissionsActive(status string, count int)

	RecordPatternNode(patternID, nodeType string, duration time.Duration)
	RecordPatternNodeError(patternID, nodeType, errorType string)

	RecordLLMCall(model, provider string, duration time.Duration)
	RecordLLMTokens(model, provider string, inputTokens, outputTokens int)
	RecordLLMError(model, provider, errorType string)

	RecordToolCall(toolName string, duration time.Duration)
	RecordToolError(toolName, errorType string)

	RecordWatchdogEvent(metric string)

	RecordHTTPRequest(method, path string, statusCode int, duration time.Duration)

	Handler() http.Handler
}

var _ Recorder = (*Metrics)(nil)
