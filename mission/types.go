// Package mission is the outer loop that sequences a mission's phases:
// sprint iteration, evidence gates, reloop-on-failure, and feedback
// triggers (spec §4.6 "Mission Orchestrator"). Grounded on team.Team's
// service-oriented composition, generalized from running one workflow
// once to the spec's stateful phase-by-phase sprint loop.
package mission

import (
	"context"
	"time"
)

// Status is a MissionDef's lifecycle state (spec §3 MissionDef).
type Status string

const (
	StatusPending            Status = "pending"
	StatusPlanning           Status = "planning"
	StatusRunning            Status = "running"
	StatusPaused             Status = "paused"
	StatusWaitingValidation  Status = "waiting_validation"
	StatusCompleted          Status = "completed"
	StatusFailed             Status = "failed"
	StatusAbandoned          Status = "abandoned"
)

// PhaseStatus is one PhaseState's lifecycle state (spec §3 PhaseState).
type PhaseStatus string

const (
	PhasePending           PhaseStatus = "PENDING"
	PhaseRunning           PhaseStatus = "RUNNING"
	PhaseDone              PhaseStatus = "DONE"
	PhaseDoneWithIssues    PhaseStatus = "DONE_WITH_ISSUES"
	PhaseWaitingValidation PhaseStatus = "WAITING_VALIDATION"
	PhaseFailed            PhaseStatus = "FAILED"
	PhaseSkipped           PhaseStatus = "SKIPPED"
)

// Phase is one step in a mission (spec §3 PhaseState).
type Phase struct {
	PhaseID     string
	Status      PhaseStatus
	StartedAt   time.Time
	CompletedAt time.Time
	AgentCount  int
	Summary     string
}

// Def is the outer work unit a mission drives to completion (spec §3
// MissionDef).
type Def struct {
	ID                 string
	ProjectID          string
	Name               string
	Brief              string
	Status             Status
	WorkflowID         string
	Phases             []Phase
	CurrentPhase       int
	WorkspacePath      string
	ResumeAttempts     int
	LastResumeAt       time.Time
	HumanInputRequired bool
	Type               string
	Category           string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// reloopCount is incremented every time run_phases rewinds to an
	// earlier phase (spec §4.6 "Error reloop"); capped at MaxReloops.
	reloopCount int
}

// MaxReloops bounds how many times one mission run may rewind to an
// earlier dev phase after a downstream failure (spec §4.6).
const MaxReloops = 2

// PhaseTimeout bounds one sprint attempt's pattern run (spec §4.6).
const PhaseTimeout = 600 * time.Second

// MaxLLMRetries bounds the retry-on-timeout/rate-limit loop around one
// sprint's pattern run (spec §4.6).
const MaxLLMRetries = 2

// LLMRetryDelay is the pause between retries (spec §4.6).
const LLMRetryDelay = 30 * time.Second

// HumanInLoopWait bounds how long run_phases polls a waiting_validation
// phase for a status change before defaulting to DONE (spec §4.6).
const HumanInLoopWait = 600 * time.Second

var reloopablePhaseIDs = map[string]bool{
	"qa": true, "deploy": true, "tma": true, "sprint": true,
	"dev": true, "cicd": true, "pipeline": true,
}

// dev phase detection: spec §4.6 says "phase name contains
// sprint/dev/features/test".
func isDevPhase(name string) bool {
	for _, kw := range []string{"sprint", "dev", "feature", "test"} {
		if containsFold(name, kw) {
			return true
		}
	}
	return false
}

func containsFold(s, sub string) bool {
	return len(sub) == 0 || indexFold(s, sub) >= 0
}

func indexFold(s, sub string) int {
	sl, subl := toLower(s), toLower(sub)
	for i := 0; i+len(subl) <= len(sl); i++ {
		if sl[i:i+len(subl)] == subl {
			return i
		}
	}
	return -1
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Workflow is the template a mission's phases are drawn from (spec §3
// WorkflowDef).
type Workflow struct {
	ID     string
	Name   string
	Phases []WorkflowPhase
}

type WorkflowPhase struct {
	PhaseID   string
	Name      string
	PatternID string
	Config    WorkflowPhaseConfig
}

type WorkflowPhaseConfig struct {
	AgentIDs           []string
	Leader             string
	Gate               string // always|no_veto|all_approved
	MaxIterations      int
	AcceptanceCriteria []string
}

// Store persists missions and appends chat messages (spec §3 "Messages
// are owned by the session store").
type Store interface {
	SaveMission(ctx context.Context, m *Def) error
	AppendMessage(ctx context.Context, sessionID, fromAgent, messageType, content string) error
}

// Memory is the project-memory collaborator the orchestrator reads
// backlog/architecture notes from and writes phase summaries into.
type Memory interface {
	Store(ctx context.Context, projectID, key, value string) error
	Search(ctx context.Context, projectID, category string, limit int) ([]string, error)
}

// Summarizer condenses a transcript with an LLM call under a deadline
// (spec §4.6's "LLM-summarized, 300 chars, 30s cap" / "≤2000 char
// transcript → 200 chars, 45s cap").
type Summarizer interface {
	Summarize(ctx context.Context, transcript string, maxChars int) (string, error)
}

// Sandbox is the flat (command, cwd, timeout) projection of
// sandbox.Executor.Run. No Orchestrator field or function takes a Sandbox,
// and RunPhases computes no sprint velocity.
type Sandbox interface {
	Run(ctx context.Context, command string, cwd string, timeout time.Duration) (string, error)
}

// EvidenceChecker runs a phase's acceptance criteria against the
// workspace (spec §3 EvidenceCriterion, §4.6 "run evidence checks").
type EvidenceChecker interface {
	Check(ctx context.Context, workspacePath string, criteria []string) (passed bool, report string)
}

// PatternRunner runs one PatternDef to completion (the pattern.Engine's
// Run method, kept as an interface so the Orchestrator does not depend on
// pattern — only pattern_adapter.go and fromconfig.go do — and can be
// exercised with a fake in tests).
type PatternRunner interface {
	RunPattern(ctx context.Context, patternID string, agentIDs []string, maxIterations int, task string, nc RunNodeContext) (success bool, errMsg string)
}

// RunNodeContext carries the per-run identity/event-routing fields a
// PatternRunner needs (mirrors pattern.NodeContext so the Orchestrator's
// own types do not reference pattern).
type RunNodeContext struct {
	SessionID   string
	ProjectID   string
	ProjectPath string
	FlowStep    string
	OnEvent     func(eventType string, data map[string]interface{})
}

// Feedback hooks external systems react to mission lifecycle events
// through (spec §4.6 "feedback triggers"): DORA/analytics, TMA incident
// tracking, and so on — all out of scope here, consumed as narrow
// collaborator interfaces.
type Feedback interface {
	OnDeployCompleted(ctx context.Context, mission *Def)
	OnDeployFailed(ctx context.Context, mission *Def, reason string)
	OnTMAIncidentFixed(ctx context.Context, incidentKey string)
}

// EventFunc emits one mission-lifecycle event (phase_started,
// phase_completed, evidence_gate, reloop, mission_failed, ...).
type EventFunc func(eventType string, data map[string]interface{})
