package pattern

import (
	"context"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/executor"
)

// categoryKeywords classifies a compressed memory entry by role
// (spec §4.5 step 7): architecture/quality/development/security/
// infrastructure/product/decisions.
var categoryKeywords = map[string][]string{
	"architecture":   {"arch", "design", "schema"},
	"quality":        {"qa", "test", "review"},
	"development":    {"dev", "implement", "code"},
	"security":       {"secur", "vuln", "auth"},
	"infrastructure": {"devops", "deploy", "infra", "sre"},
	"product":        {"product", "ux", "feature"},
}

func categorize(role string) string {
	role = strings.ToLower(role)
	for category, keywords := range categoryKeywords {
		for _, kw := range keywords {
			if strings.Contains(role, kw) {
				return category
			}
		}
	}
	return "decisions"
}

var memoryListLineRe = regexp.MustCompile(`^\s*(-|\*|\d+\.)\s+`)

// containsFold reports whether s contains substr, ignoring case.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// compressForMemory reduces a node's output to at most 5 bulletized
// decisions; with none found, it falls back to the first 300 characters
// (spec §4.5 step 7).
func compressForMemory(content string) string {
	var bullets []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if memoryListLineRe.MatchString(trimmed) || decisionMarkerRe.MatchString(trimmed) {
			bullets = append(bullets, trimmed)
			if len(bullets) == 5 {
				break
			}
		}
	}
	if len(bullets) > 0 {
		return strings.Join(bullets, "\n")
	}
	return truncateWithEllipsis(strings.TrimSpace(content), 300)
}

// emit fires nc.OnEvent if set.
func emit(nc NodeContext, eventType string, data map[string]interface{}) {
	if nc.OnEvent != nil {
		nc.OnEvent(eventType, data)
	}
}

// execNode is the engine's common node-execution procedure (spec §4.5
// "Common procedure _execute_node"): build the node's ExecutionContext,
// compose its task, stream the executor, detect its decision outcome,
// and — when project-scoped — compress its output into project memory.
func (e *Engine) execNode(ctx context.Context, run *Run, nc NodeContext, nodeID, task, contextFrom string) string {
	node := run.Nodes[nodeID]
	node.Status = NodeRunning
	emit(nc, "agent_status", map[string]interface{}{"node_id": nodeID, "state": "thinking"})

	def, ok := e.Agents.Resolve(node.AgentID)
	if !ok {
		node.Status = NodeFailed
		node.Output = "Error: unknown agent '" + node.AgentID + "'"
		emit(nc, "agent_status", map[string]interface{}{"node_id": nodeID, "state": "idle"})
		return node.Output
	}

	projectScoped := nc.ProjectPath != ""
	toolsEnabled := projectScoped && def.IsDevRole()
	protocol := ProtocolFor(def, projectScoped)
	fullTask := ComposeTask(nc.TeamRoster, contextFrom, task, protocol)

	rc := executor.RunContext{
		Agent:        def,
		SessionID:    nc.SessionID,
		ProjectID:    nc.ProjectID,
		ProjectPath:  nc.ProjectPath,
		ToolsEnabled: toolsEnabled,
	}

	emit(nc, "stream_start", map[string]interface{}{"node_id": nodeID})
	result := e.streamNode(ctx, rc, fullTask, nc, nodeID)
	emit(nc, "stream_end", map[string]interface{}{"node_id": nodeID})

	content := result.Content
	node.Output = content
	if result.Error != nil {
		node.Status = NodeFailed
	} else {
		node.Status = DetectOutcome(content)
		if node.Status != NodeVetoed {
			e.guardCheck(ctx, run, node, nodeID, def.Role, task, contextFrom, content, result, nc)
		}
	}

	emit(nc, "message", map[string]interface{}{"node_id": nodeID, "content": content, "status": string(node.Status)})
	emit(nc, "agent_status", map[string]interface{}{"node_id": nodeID, "state": "idle"})

	if projectScoped && result.Error == nil && e.Memory != nil {
		key := def.Name + ": " + nc.FlowStep
		category := categorize(def.Role)
		if cs, ok := e.Memory.(interface {
			StoreCategory(ctx context.Context, projectID, key, value, category string) error
		}); ok {
			_ = cs.StoreCategory(ctx, nc.ProjectID, key, compressForMemory(content), category)
		} else {
			_ = e.Memory.Store(ctx, nc.ProjectID, key, compressForMemory(content))
		}
		emit(nc, "memory_stored", map[string]interface{}{"node_id": nodeID, "key": key, "category": category})
	}

	return content
}

// guardCheck validates node output against the Adversarial Guard (spec
// §4.3): L0 always, L1 additionally for execution patterns once L0
// passes. A guard reject marks the node VETOED, so the pattern's veto
// policy (halt a sequential chain, drop from aggregation, ...) applies
// the same way a [VETO] marker in the text itself does. An L1
// collaborator error fails open — only an explicit REJECT verdict vetoes,
// never a broken reviewer call.
func (e *Engine) guardCheck(ctx context.Context, run *Run, node *Node, nodeID, role, task, contextFrom, content string, result executor.ExecutionResult, nc NodeContext) {
	if e.Guard == nil {
		return
	}

	usedWriteTools := len(result.Artifacts) > 0
	var historyQuoted []string
	if contextFrom != "" {
		historyQuoted = strings.Split(contextFrom, "\n")
	}

	l0 := e.Guard.CheckL0(content, role, usedWriteTools, historyQuoted)
	if l0.Reject {
		node.Status = NodeVetoed
		emit(nc, "evidence_gate", map[string]interface{}{"node_id": nodeID, "stage": "L0", "reasons": l0.Reasons, "score": l0.Score})
		return
	}

	if !executionPatterns[run.Def.Type] || e.Executor == nil || e.Executor.Provider == nil {
		return
	}
	verdict, err := e.Guard.CheckL1(ctx, e.Executor.Provider, task, content)
	if err != nil {
		return
	}
	if verdict.Rejected() {
		node.Status = NodeVetoed
		emit(nc, "evidence_gate", map[string]interface{}{"node_id": nodeID, "stage": "L1", "reasons": verdict.Issues, "score": verdict.Score})
	}
}

// streamNode consumes the executor's streaming iterator, falling back to
// a non-streaming Run on streaming failure (spec §4.5 step 4).
func (e *Engine) streamNode(ctx context.Context, rc executor.RunContext, task string, nc NodeContext, nodeID string) executor.ExecutionResult {
	events, err := e.Executor.RunStreaming(ctx, rc, task, "")
	if err != nil || events == nil {
		return e.Executor.Run(ctx, rc, task, "")
	}

	var final *executor.ExecutionResult
	for evt := range events {
		switch evt.Kind {
		case "delta":
			if evt.Delta != "" {
				emit(nc, "stream_delta", map[string]interface{}{"node_id": nodeID, "text": evt.Delta})
			}
		case "result":
			final = evt.Result
		}
	}
	if final == nil {
		return e.Executor.Run(ctx, rc, task, "")
	}
	return *final
}
