package observability

const (
	AttrServiceName    = "service.name"
	AttrMissionID      = "mission.id"
	AttrPhaseID        = "mission.phase_id"
	AttrPatternID      = "pattern.id"
	AttrNodeID         = "pattern.node_id"
	AttrAgentName      = "agent.name"
	AttrToolName       = "tool.name"
	AttrLLMModel       = "llm.model"
	AttrLLMProvider    = "llm.provider"
	AttrErrorType      = "error.type"
	AttrHTTPMethod     = "http.method"
	AttrHTTPPath       = "http.path"
	AttrHTTPStatusCode = "http.status_code"

	SpanMissionRun   = "mission.run_phases"
	SpanPatternRun   = "pattern.run"
	SpanNodeExecute  = "pattern.execute_node"
	SpanLLMCall      = "llm.call"
	SpanToolCall     = "tool.call"
	SpanHTTPRequest  = "http.request"

	DefaultServiceName = "conductor"
	DefaultMetricsPath = "/metrics"
)
