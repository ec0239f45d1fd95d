package executor

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/errs"
	"github.com/conductorhq/conductor/llms"
)

// Executor runs one agent turn against a Provider, a Tools registry, and
// a Guardrails gate (spec §4.4).
type Executor struct {
	Provider   llms.Provider
	Tools      Tools
	Guardrails Guardrails
}

func New(provider llms.Provider, tools Tools, guardrails Guardrails) *Executor {
	return &Executor{Provider: provider, Tools: tools, Guardrails: guardrails}
}

// Run executes one full agent turn: prompt assembly, tool filtering,
// message assembly, the bounded tool-calling loop, and result
// extraction (spec §4.4 steps 1-5).
func (e *Executor) Run(ctx context.Context, rc RunContext, userMessage, projectContext string) ExecutionResult {
	systemPrompt := BuildSystemPrompt(rc, projectContext)
	messages := e.assembleMessages(systemPrompt, rc.History, userMessage)

	var toolDefs []llms.ToolDefinition
	if rc.ToolsEnabled {
		for _, d := range e.Tools.Filtered(ToolPredicate(rc.Agent)) {
			toolDefs = append(toolDefs, llms.ToolDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.Parameters,
			})
		}
	}

	result := ExecutionResult{}
	deepSearchUsed := false

	for round := 0; round < MaxToolRounds; round++ {
		result.IterationsUsed = round + 1

		roundTools := toolDefs
		if round > 0 {
			// schemas are only sent on round 0; subsequent rounds rely on
			// server-side context the way the spec's algorithm describes.
			roundTools = nil
		}
		if deepSearchUsed {
			roundTools = nil
		}
		if round == MaxToolRounds-2 {
			messages = append(messages, llms.Message{Role: "system", Content: "synthesize and respond now"})
			roundTools = nil
		}

		resp, err := e.Provider.Generate(ctx, messages, roundTools)
		if err != nil {
			result.Error = err
			result.Content = fmt.Sprintf("Error: %v", err)
			return result
		}

		toolCalls := resp.ToolCalls
		if len(toolCalls) == 0 {
			toolCalls = LiftXMLToolCalls(resp.Content)
		}

		if len(toolCalls) == 0 {
			result.Content = StripRawProviderTokens(resp.Content)
			result.Delegations = ParseDelegations(result.Content)
			return result
		}

		messages = append(messages, llms.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: toolCalls,
		})

		for _, call := range toolCalls {
			content, artifact := e.executeToolCall(ctx, rc, call)
			result.ToolCalls = append(result.ToolCalls, call)
			if artifact != nil {
				result.Artifacts = append(result.Artifacts, *artifact)
			}
			if call.Name == "deep_search" {
				deepSearchUsed = true
			}

			messages = append(messages, llms.Message{
				Role:       "tool",
				Content:    truncate(content, toolResultHistorySnippet),
				ToolCallID: call.ID,
				Name:       call.Name,
			})

			if rc.OnToolCall != nil {
				rc.OnToolCall(call.Name, call.Arguments, truncate(content, toolResultSummarySnippet))
			}
		}
	}

	result.Content = "(Max tool rounds reached)"
	result.Error = errs.New("executor", "Run", "max tool rounds reached", errs.ErrMaxToolRounds)
	return result
}

// executeToolCall checks guardrails, executes the call, and — for
// code_write/code_edit — records an artifact (spec §4.4 step 4).
func (e *Executor) executeToolCall(ctx context.Context, rc RunContext, call llms.ToolCall) (string, *Artifact) {
	if e.Guardrails != nil {
		if msg, err := e.Guardrails.Check(ctx, call.Name, call.Arguments, rc.Agent.ID, rc.SessionID); err != nil {
			return msg, nil
		} else if msg != "" {
			return msg, nil
		}
	}

	result := e.Tools.Execute(ctx, call.Name, call.Arguments)

	if call.Name == "code_write" || call.Name == "code_edit" {
		path, _ := call.Arguments["path"].(string)
		language, _ := call.Arguments["language"].(string)
		content, _ := call.Arguments["content"].(string)
		artifact := &Artifact{
			ID:        uuid.NewString(),
			SessionID: rc.SessionID,
			Type:      call.Name,
			Path:      path,
			Language:  language,
			Content:   truncate(content, artifactContentSnippet),
			CreatedBy: rc.Agent.ID,
		}
		return result, artifact
	}
	return result, nil
}

// assembleMessages maps RunContext.History to chat turns and appends the
// new user turn (spec §4.4 step 3). History entries keep role=user for
// user turns; everything else becomes role=assistant and keeps its Name
// (the originating agent id).
func (e *Executor) assembleMessages(systemPrompt string, history []llms.Message, userMessage string) []llms.Message {
	messages := make([]llms.Message, 0, len(history)+2)
	messages = append(messages, llms.Message{Role: "system", Content: systemPrompt})
	for _, h := range history {
		if h.Role != "user" {
			h.Role = "assistant"
		}
		messages = append(messages, h)
	}
	messages = append(messages, llms.Message{Role: "user", Content: userMessage})
	return messages
}
