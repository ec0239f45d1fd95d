// Package pattern is the state machine that runs a pattern graph of agent
// nodes to completion: per-node LLM invocation via the Agent Runtime,
// context compression, decision-marker detection, and streaming event
// emission (spec §4.5 "Pattern Execution Engine").
package pattern

import (
	"context"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/executor"
	"github.com/conductorhq/conductor/guard"
	"github.com/conductorhq/conductor/llms"
)

// Type is one of the ten pattern variants spec §4.5 names.
type Type string

const (
	TypeSolo         Type = "solo"
	TypeSequential   Type = "sequential"
	TypeParallel     Type = "parallel"
	TypeLoop         Type = "loop"
	TypeHierarchical Type = "hierarchical"
	TypeNetwork      Type = "network" // debate
	TypeRouter       Type = "router"
	TypeAggregator   Type = "aggregator"
	TypeWave         Type = "wave"
	TypeHumanInLoop  Type = "human-in-the-loop"
)

// knownTypes are the ten declared pattern variants; anything else is a
// configuration error rather than a degenerate graph.
var knownTypes = map[Type]bool{
	TypeSolo:         true,
	TypeSequential:   true,
	TypeParallel:     true,
	TypeLoop:         true,
	TypeHierarchical: true,
	TypeNetwork:      true,
	TypeRouter:       true,
	TypeAggregator:   true,
	TypeWave:         true,
	TypeHumanInLoop:  true,
}

// NodeStatus is one node's lifecycle state within a PatternRun.
type NodeStatus string

const (
	NodePending   NodeStatus = "PENDING"
	NodeRunning   NodeStatus = "RUNNING"
	NodeCompleted NodeStatus = "COMPLETED"
	NodeFailed    NodeStatus = "FAILED"
	NodeVetoed    NodeStatus = "VETOED"
)

// EdgeType connects two nodes with a role-specific meaning a pattern
// variant interprets (sequential chaining, parallel fan-out, aggregation).
type EdgeType string

const (
	EdgeSequential EdgeType = "sequential"
	EdgeParallel   EdgeType = "parallel"
	EdgeAggregate  EdgeType = "aggregate"
)

// Edge is one directed connection in the pattern graph.
type Edge struct {
	From string
	To   string
	Type EdgeType
}

// Node is one slot in the pattern graph. An empty AgentID marks a
// human-in-the-loop slot (spec §4.5 "human-in-the-loop" variant).
type Node struct {
	ID      string
	AgentID string
	Status  NodeStatus
	Output  string
}

// Def is one pattern graph to run: its type, node/edge layout, and the
// per-variant iteration caps spec §4.5 names.
type Def struct {
	Type          Type
	Nodes         []Node
	Edges         []Edge
	MaxIterations int // loop: producer/reviewer rounds, default 5
	MaxOuter      int // hierarchical: QA-validation outer iterations, default 3
	MaxInner      int // hierarchical: worker/manager inner iterations, default 2
	MaxRounds     int // network (debate): default 3
}

func (d Def) maxIterations() int {
	if d.MaxIterations > 0 {
		return d.MaxIterations
	}
	return 5
}

func (d Def) maxOuter() int {
	if d.MaxOuter > 0 {
		return d.MaxOuter
	}
	return 3
}

func (d Def) maxInner() int {
	if d.MaxInner > 0 {
		return d.MaxInner
	}
	return 2
}

func (d Def) maxRounds() int {
	if d.MaxRounds > 0 {
		return d.MaxRounds
	}
	return 3
}

// Run is the live state of one pattern execution.
type Run struct {
	Def   Def
	Nodes map[string]*Node
}

func newRun(def Def) *Run {
	nodes := make(map[string]*Node, len(def.Nodes))
	for i := range def.Nodes {
		n := def.Nodes[i]
		n.Status = NodePending
		nodes[n.ID] = &n
	}
	return &Run{Def: def, Nodes: nodes}
}

// Result is what a completed pattern run produces (spec §4.5 "Pattern
// success": success iff every node is COMPLETED or PENDING and none is
// VETOED).
type Result struct {
	Success bool
	Error   string
	Nodes   []Node
}

func (r *Run) result(errMsg string) Result {
	nodes := make([]Node, 0, len(r.Nodes))
	success := errMsg == ""
	for _, n := range r.Nodes {
		nodes = append(nodes, *n)
		if n.Status == NodeVetoed {
			success = false
		} else if n.Status != NodeCompleted && n.Status != NodePending {
			success = false
		}
	}
	return Result{Success: success, Error: errMsg, Nodes: nodes}
}

// AgentResolver looks up an agent.Def by id — the pattern engine's only
// dependency on agent identity, kept as an interface so pattern doesn't
// need the full agent Registry type.
type AgentResolver interface {
	Resolve(agentID string) (agent.Def, bool)
}

// NodeContext is everything _execute_node needs beyond the node/task
// itself (spec §4.5 "Common procedure").
type NodeContext struct {
	SessionID   string
	ProjectID   string
	ProjectPath string
	FlowStep    string   // used to key stored memory: "<agent_name>: <flow_step>"
	TeamRoster  []string // agent names, for the roster block
	OnEvent     EventFunc
}

// EventFunc emits one pattern/node lifecycle event (spec §4.2's event
// types: agent_status, stream_start/delta/end, message, checkpoint,
// memory_stored, pattern_start/end).
type EventFunc func(eventType string, data map[string]interface{})

// Memory is the project-memory collaborator _execute_node writes
// compressed decisions into (spec §4.5 step 7).
type Memory interface {
	Store(ctx context.Context, projectID, key, value string) error
}

// Guard is the Adversarial Guard collaborator execNode validates output
// against (spec §4.3): a deterministic L0 scan, and an LLM-backed L1
// review for execution patterns that costs a full round trip.
type Guard interface {
	CheckL0(text, role string, usedWriteTools bool, historyQuoted []string) guard.L0Result
	CheckL1(ctx context.Context, reviewer llms.Provider, taskDescription, text string) (guard.L1Verdict, error)
}

// defaultGuard wires the package-level guard.CheckL0/CheckL1 funcs as the
// Engine's default collaborator, so callers that never set Guard still get
// the real checks rather than silently skipping them.
type defaultGuard struct{}

func (defaultGuard) CheckL0(text, role string, usedWriteTools bool, historyQuoted []string) guard.L0Result {
	return guard.CheckL0(text, role, usedWriteTools, historyQuoted)
}

func (defaultGuard) CheckL1(ctx context.Context, reviewer llms.Provider, taskDescription, text string) (guard.L1Verdict, error) {
	return guard.CheckL1(ctx, reviewer, taskDescription, text)
}

// executionPatterns are the pattern types L1 review runs on once L0 passes
// (spec §4.3: sequential, hierarchical, parallel, loop, aggregator — the
// patterns that actually execute agent work, as opposed to solo/router/
// human-in-the-loop/wave/network which either do too little work to be
// worth the round trip or have their own validation path).
var executionPatterns = map[Type]bool{
	TypeSequential:   true,
	TypeHierarchical: true,
	TypeParallel:     true,
	TypeLoop:         true,
	TypeAggregator:   true,
}

// Engine runs PatternRuns against an Executor, an AgentResolver, and an
// optional Memory sink.
type Engine struct {
	Executor *executor.Executor
	Agents   AgentResolver
	Memory   Memory
	Guard    Guard
}

func New(exec *executor.Executor, agents AgentResolver, memory Memory) *Engine {
	return &Engine{Executor: exec, Agents: agents, Memory: memory, Guard: defaultGuard{}}
}

// Run dispatches to the variant executor for def.Type and returns the
// final Result once every node has settled (spec §4.5 "Pattern success").
func (e *Engine) Run(ctx context.Context, def Def, nc NodeContext, task string) Result {
	run := newRun(def)
	if nc.OnEvent != nil {
		nc.OnEvent("pattern_start", map[string]interface{}{"type": string(def.Type)})
	}

	var errMsg string
	if !knownTypes[def.Type] {
		errMsg = "unknown pattern type: " + string(def.Type)
	} else {
		switch {
		case len(def.Nodes) == 0:
			// an empty graph trivially succeeds with no nodes run (spec §8).
		case len(def.Nodes) == 1 && def.Nodes[0].AgentID != "":
			// a single agent-backed node reduces to solo regardless of the
			// declared type (spec §8).
			errMsg = e.runSolo(ctx, run, nc, task)
		default:
			switch def.Type {
			case TypeSolo:
				errMsg = e.runSolo(ctx, run, nc, task)
			case TypeSequential:
				errMsg = e.runSequential(ctx, run, nc, task)
			case TypeParallel:
				errMsg = e.runParallel(ctx, run, nc, task)
			case TypeLoop:
				errMsg = e.runLoop(ctx, run, nc, task)
			case TypeHierarchical:
				errMsg = e.runHierarchical(ctx, run, nc, task)
			case TypeNetwork:
				errMsg = e.runNetwork(ctx, run, nc, task)
			case TypeRouter:
				errMsg = e.runRouter(ctx, run, nc, task)
			case TypeAggregator:
				errMsg = e.runAggregator(ctx, run, nc, task)
			case TypeWave:
				errMsg = e.runWave(ctx, run, nc, task)
			case TypeHumanInLoop:
				errMsg = e.runHumanInLoop(ctx, run, nc, task)
			}
		}
	}

	result := run.result(errMsg)
	if nc.OnEvent != nil {
		nc.OnEvent("pattern_end", map[string]interface{}{"success": result.Success, "error": result.Error})
	}
	return result
}
