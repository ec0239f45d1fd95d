package executor

import (
	"context"
	"strings"

	"github.com/conductorhq/conductor/errs"
	"github.com/conductorhq/conductor/llms"
)

// thinkingHeartbeatEvery emits a stream_thinking-style heartbeat delta
// every N chunks of <think> content (spec §4.4 "Streaming variant").
const thinkingHeartbeatEvery = 20

// RunStreaming runs the same algorithm as Run but streams text deltas as
// they arrive, filtering <think> blocks and provider tool-call markers
// out of what's forwarded to the caller, and emits a heartbeat delta
// every 20 chunks of thinking content. The final ExecutionResult is sent
// as a StreamEvent{Kind: "result"} before the channel closes.
func (e *Executor) RunStreaming(ctx context.Context, rc RunContext, userMessage, projectContext string) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 64)

	go func() {
		defer close(out)

		systemPrompt := BuildSystemPrompt(rc, projectContext)
		messages := e.assembleMessages(systemPrompt, rc.History, userMessage)

		var toolDefs []llms.ToolDefinition
		if rc.ToolsEnabled {
			for _, d := range e.Tools.Filtered(ToolPredicate(rc.Agent)) {
				toolDefs = append(toolDefs, llms.ToolDefinition{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
			}
		}

		result := ExecutionResult{}
		deepSearchUsed := false
		var finalText strings.Builder

		for round := 0; round < MaxToolRounds; round++ {
			result.IterationsUsed = round + 1

			roundTools := toolDefs
			if round > 0 || deepSearchUsed {
				roundTools = nil
			}
			if round == MaxToolRounds-2 {
				messages = append(messages, llms.Message{Role: "system", Content: "synthesize and respond now"})
				roundTools = nil
			}

			chunks, err := e.Provider.GenerateStreaming(ctx, messages, roundTools)
			if err != nil {
				result.Error = err
				result.Content = "Error: " + err.Error()
				out <- StreamEvent{Kind: "result", Result: &result}
				return
			}

			finalText.Reset()
			var toolCalls []llms.ToolCall
			thinkingChunks := 0
			inThink := false

			for chunk := range chunks {
				switch chunk.Type {
				case "text":
					text := chunk.Text
					if strings.Contains(text, "<think>") {
						inThink = true
					}
					if inThink {
						thinkingChunks++
						if thinkingChunks%thinkingHeartbeatEvery == 0 {
							out <- StreamEvent{Kind: "delta", Delta: ""}
						}
					} else {
						finalText.WriteString(text)
						out <- StreamEvent{Kind: "delta", Delta: text}
					}
					if strings.Contains(text, "</think>") {
						inThink = false
					}
				case "tool_call":
					if chunk.ToolCall != nil {
						toolCalls = append(toolCalls, *chunk.ToolCall)
					}
				case "error":
					result.Error = chunk.Error
				}
			}

			if result.Error != nil {
				result.Content = "Error: " + result.Error.Error()
				out <- StreamEvent{Kind: "result", Result: &result}
				return
			}

			if len(toolCalls) == 0 {
				toolCalls = LiftXMLToolCalls(finalText.String())
			}

			if len(toolCalls) == 0 {
				result.Content = StripRawProviderTokens(finalText.String())
				result.Delegations = ParseDelegations(result.Content)
				out <- StreamEvent{Kind: "result", Result: &result}
				return
			}

			messages = append(messages, llms.Message{Role: "assistant", Content: finalText.String(), ToolCalls: toolCalls})

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
		result.Error = errs.New("executor", "RunStreaming", "max tool rounds reached", errs.ErrMaxToolRounds)
		out <- StreamEvent{Kind: "result", Result: &result}
	}()

	return out, nil
}
