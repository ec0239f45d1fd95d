package llms

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/conductorhq/conductor/config"
)

// GeminiProvider implements Provider against Google's genai SDK.
type GeminiProvider struct {
	cfg    *config.LLMProviderConfig
	client *genai.Client
}

func NewGeminiProvider(cfg *config.LLMProviderConfig) (*GeminiProvider, error) {
	cfg.SetDefaults()
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiProvider{cfg: cfg, client: client}, nil
}

func (p *GeminiProvider) ModelName() string    { return p.cfg.Model }
func (p *GeminiProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *GeminiProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *GeminiProvider) Close() error         { return nil }

func (p *GeminiProvider) buildContents(messages []Message) ([]*genai.Content, *genai.Content) {
	var contents []*genai.Content
	var systemInstruction *genai.Content

	for _, m := range messages {
		switch m.Role {
		case "system":
			systemInstruction = &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			}
		case "tool":
			contents = append(contents, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{{
					FunctionResponse: &genai.FunctionResponse{
						Name:     m.Name,
						Response: map[string]any{"result": m.Content},
					},
				}},
			})
		case "assistant":
			parts := []*genai.Part{}
			if m.Content != "" {
				parts = append(parts, &genai.Part{Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: tc.Arguments},
				})
			}
			contents = append(contents, &genai.Content{Role: "model", Parts: parts})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: m.Content}},
			})
		}
	}
	return contents, systemInstruction
}

func (p *GeminiProvider) buildConfig(tools []ToolDefinition, systemInstruction *genai.Content) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(p.cfg.Temperature)),
		MaxOutputTokens:   int32(p.cfg.MaxTokens),
		SystemInstruction: systemInstruction,
	}
	if len(tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaFromJSON(t.Parameters),
			})
		}
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	return cfg
}

func schemaFromJSON(params map[string]interface{}) *genai.Schema {
	if params == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	props := map[string]*genai.Schema{}
	if rawProps, ok := params["properties"].(map[string]interface{}); ok {
		for name, raw := range rawProps {
			if m, ok := raw.(map[string]interface{}); ok {
				t, _ := m["type"].(string)
				d, _ := m["description"].(string)
				props[name] = &genai.Schema{Type: genai.Type(t), Description: d}
			}
		}
	}
	var required []string
	if rawReq, ok := params["required"].([]string); ok {
		required = rawReq
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

func (p *GeminiProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	contents, sysInstr := p.buildContents(messages)
	cfg := p.buildConfig(tools, sysInstr)

	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, contents, cfg)
	if err != nil {
		return Response{}, fmt.Errorf("gemini generation failed: %w", err)
	}
	return parseGeminiResponse(resp)
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	contents, sysInstr := p.buildContents(messages)
	cfg := p.buildConfig(tools, sysInstr)

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		tokens := 0
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.cfg.Model, contents, cfg) {
			if err != nil {
				out <- StreamChunk{Type: "error", Error: fmt.Errorf("gemini stream error: %w", err)}
				return
			}
			parsed, err := parseGeminiResponse(resp)
			if err != nil {
				out <- StreamChunk{Type: "error", Error: err}
				return
			}
			tokens += parsed.TokensOut
			if parsed.Content != "" {
				out <- StreamChunk{Type: "text", Text: parsed.Content}
			}
			for i := range parsed.ToolCalls {
				out <- StreamChunk{Type: "tool_call", ToolCall: &parsed.ToolCalls[i]}
			}
		}
		out <- StreamChunk{Type: "done", Tokens: tokens}
	}()
	return out, nil
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (Response, error) {
	if len(resp.Candidates) == 0 {
		return Response{}, fmt.Errorf("gemini response had no candidates")
	}
	candidate := resp.Candidates[0]
	var content string
	var toolCalls []ToolCall
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				content += part.Text
			}
			if part.FunctionCall != nil {
				toolCalls = append(toolCalls, ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				})
			}
		}
	}

	var tokensIn, tokensOut int
	if resp.UsageMetadata != nil {
		tokensIn = int(resp.UsageMetadata.PromptTokenCount)
		tokensOut = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return Response{
		Content:      content,
		ToolCalls:    toolCalls,
		TokensIn:     tokensIn,
		TokensOut:    tokensOut,
		FinishReason: string(candidate.FinishReason),
	}, nil
}
