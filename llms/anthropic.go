package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/conductorhq/conductor/config"
)

// AnthropicProvider implements Provider against the Claude Messages API via
// the official SDK, rather than a hand-rolled HTTP+SSE client — the SDK
// already owns retry/backoff and request signing.
type AnthropicProvider struct {
	cfg    *config.LLMProviderConfig
	client anthropic.Client
}

func NewAnthropicProvider(cfg *config.LLMProviderConfig) (*AnthropicProvider, error) {
	cfg.SetDefaults()
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Host != "" {
		opts = append(opts, option.WithBaseURL(cfg.Host))
	}
	return &AnthropicProvider{
		cfg:    cfg,
		client: anthropic.NewClient(opts...),
	}, nil
}

func (p *AnthropicProvider) ModelName() string    { return p.cfg.Model }
func (p *AnthropicProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *AnthropicProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *AnthropicProvider) Close() error         { return nil }

func (p *AnthropicProvider) buildParams(messages []Message, tools []ToolDefinition, stream bool) (anthropic.MessageNewParams, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.cfg.Model),
		MaxTokens:   int64(p.cfg.MaxTokens),
		Temperature: anthropic.Float(p.cfg.Temperature),
	}

	for _, m := range messages {
		switch m.Role {
		case "system":
			params.System = []anthropic.TextBlockParam{{Text: m.Content}}
		case "tool":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				argsJSON, err := json.Marshal(tc.Arguments)
				if err != nil {
					return params, fmt.Errorf("marshal tool call arguments for %s: %w", tc.Name, err)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(argsJSON), tc.Name))
			}
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		default: // "user"
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	if len(tools) > 0 {
		for _, t := range tools {
			params.Tools = append(params.Tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        t.Name,
					Description: anthropic.String(t.Description),
					InputSchema: anthropic.ToolInputSchemaParam{
						Properties: t.Parameters["properties"],
					},
				},
			})
		}
	}
	return params, nil
}

func (p *AnthropicProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	params, err := p.buildParams(messages, tools, false)
	if err != nil {
		return Response{}, err
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return Response{}, fmt.Errorf("anthropic request failed: %w", err)
	}

	var content string
	var toolCalls []ToolCall
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			content += variant.Text
		case anthropic.ToolUseBlock:
			var args map[string]interface{}
			raw, _ := variant.Input.MarshalJSON()
			_ = json.Unmarshal(raw, &args)
			toolCalls = append(toolCalls, ToolCall{
				ID:        variant.ID,
				Name:      variant.Name,
				Arguments: args,
				RawArgs:   string(raw),
			})
		}
	}

	return Response{
		Content:      content,
		ToolCalls:    toolCalls,
		TokensIn:     int(msg.Usage.InputTokens),
		TokensOut:    int(msg.Usage.OutputTokens),
		FinishReason: string(msg.StopReason),
	}, nil
}

func (p *AnthropicProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	params, err := p.buildParams(messages, tools, true)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)

		stream := p.client.Messages.NewStreaming(ctx, params)
		var accumulated anthropic.Message
		toolArgsByIndex := map[int64]*string{}

		for stream.Next() {
			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				out <- StreamChunk{Type: "error", Error: err}
				return
			}

			switch delta := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch d := delta.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					out <- StreamChunk{Type: "text", Text: d.Text}
				case anthropic.InputJSONDelta:
					if toolArgsByIndex[delta.Index] == nil {
						s := ""
						toolArgsByIndex[delta.Index] = &s
					}
					*toolArgsByIndex[delta.Index] += d.PartialJSON
				}
			}
		}
		if err := stream.Err(); err != nil {
			out <- StreamChunk{Type: "error", Error: fmt.Errorf("anthropic stream failed: %w", err)}
			return
		}

		for _, block := range accumulated.Content {
			if use, ok := block.AsAny().(anthropic.ToolUseBlock); ok {
				var args map[string]interface{}
				raw, _ := use.Input.MarshalJSON()
				_ = json.Unmarshal(raw, &args)
				tc := ToolCall{ID: use.ID, Name: use.Name, Arguments: args, RawArgs: string(raw)}
				out <- StreamChunk{Type: "tool_call", ToolCall: &tc}
			}
		}
		out <- StreamChunk{Type: "done", Tokens: int(accumulated.Usage.OutputTokens)}
	}()
	return out, nil
}
