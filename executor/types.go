// Package executor runs one agent turn: prompt assembly, role-based tool
// filtering, the bounded tool-calling loop, and artifact/delegation
// extraction (spec §4.4 "Agent Runtime (Executor)").
package executor

import (
	"context"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/llms"
	"github.com/conductorhq/conductor/tool"
)

// MaxToolRounds bounds the tool-calling loop (spec §4.4 step 4).
const MaxToolRounds = 15

// historyLimit is how many prior messages RunContext.History should
// carry; callers building RunContext are expected to have already
// truncated to this (the executor does not re-truncate itself, so a
// caller passing more gets more — it only bounds what it produces going
// forward, e.g. the per-tool-result snippet lengths below).
const historyLimit = 20

const (
	toolResultHistorySnippet = 4000
	toolResultSummarySnippet = 500
	artifactContentSnippet   = 2000
)

// OnToolCall is fired after every tool execution in the loop.
type OnToolCall func(name string, args map[string]interface{}, result string)

// RunContext carries everything one agent turn needs.
type RunContext struct {
	Agent        agent.Def
	SessionID    string
	ProjectID    string
	ProjectPath  string
	History      []llms.Message
	ProjectMemory string
	VisionSnippet string
	Skills       []string
	ToolsEnabled bool
	OnToolCall   OnToolCall
}

// Artifact is a recorded side effect of a code_write/code_edit tool call
// (spec §4.4 step 4 and §3 data model).
type Artifact struct {
	ID        string
	SessionID string
	Type      string
	Path      string
	Language  string
	Content   string
	CreatedBy string
}

// Delegation is a `[DELEGATE:agent_id] task` line parsed out of the
// agent's final text (spec §4.4 step 5).
type Delegation struct {
	AgentID string
	Task    string
}

// ExecutionResult is what one agent turn produces.
type ExecutionResult struct {
	Content        string
	ToolCalls      []llms.ToolCall
	Artifacts      []Artifact
	Delegations    []Delegation
	Error          error
	IterationsUsed int
}

// StreamEvent is one item of the streaming variant's output (spec §4.4
// "Streaming variant"): Kind is "delta" (incremental text) or "result"
// (the final ExecutionResult, carried in Result).
type StreamEvent struct {
	Kind   string
	Delta  string
	Result *ExecutionResult
}

// Guardrails is the subset of guard.Guardrails the executor depends on
// (kept as an interface here so executor doesn't import guard directly,
// avoiding an import cycle risk now that guard's own tests may want to
// exercise executor-shaped fakes later).
type Guardrails interface {
	Check(ctx context.Context, toolName string, args map[string]interface{}, actorID, sessionID string) (string, error)
}

// Tools is the subset of tool.Registry the executor depends on.
type Tools interface {
	Filtered(pred tool.Predicate) []tool.Definition
	Execute(ctx context.Context, name string, args map[string]interface{}) string
}
