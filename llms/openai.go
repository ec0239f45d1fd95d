package llms

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/httpclient"
)

// OpenAIProvider implements Provider for the OpenAI chat-completions API
// (and any OpenAI-compatible gateway reachable via cfg.Host).
type OpenAIProvider struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
}

func NewOpenAIProvider(cfg *config.LLMProviderConfig) (*OpenAIProvider, error) {
	cfg.SetDefaults()
	if cfg.Host == "" {
		cfg.Host = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelaySec)*time.Second),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
	}, nil
}

func (p *OpenAIProvider) ModelName() string    { return p.cfg.Model }
func (p *OpenAIProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OpenAIProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OpenAIProvider) Close() error         { return nil }

// ----------------------------------------------------------------------
// Wire types
// ----------------------------------------------------------------------

type openAIRequest struct {
	Model               string          `json:"model"`
	Messages            []openAIMessage `json:"messages"`
	MaxTokens           int             `json:"max_tokens,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Temperature         float64         `json:"temperature"`
	Stream              bool            `json:"stream"`
	Tools               []openAITool    `json:"tools,omitempty"`
	ToolChoice          string          `json:"tool_choice,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIResponse struct {
	Choices []openAIChoice  `json:"choices"`
	Usage   openAIUsage     `json:"usage"`
	Error   *openAIAPIError `json:"error,omitempty"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage,omitempty"`
	Error   *openAIAPIError      `json:"error,omitempty"`
}

type openAIStreamChoice struct {
	Delta        openAIDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

type openAIDelta struct {
	Content   string           `json:"content,omitempty"`
	ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
}

// ----------------------------------------------------------------------
// Generate / GenerateStreaming
// ----------------------------------------------------------------------

func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	req := p.buildRequest(messages, tools, false)

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, fmt.Errorf("openai response had no choices")
	}

	choice := parsed.Choices[0]
	toolCalls, err := parseOpenAIToolCalls(choice.Message.ToolCalls)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Content:      choice.Message.Content,
		ToolCalls:    toolCalls,
		TokensIn:     parsed.Usage.PromptTokens,
		TokensOut:    parsed.Usage.CompletionTokens,
		FinishReason: choice.FinishReason,
	}, nil
}

func (p *OpenAIProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	req := p.buildRequest(messages, tools, true)
	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		if err := p.streamRequest(ctx, req, out); err != nil {
			out <- StreamChunk{Type: "error", Error: err}
		}
	}()
	return out, nil
}

func (p *OpenAIProvider) streamRequest(ctx context.Context, req openAIRequest, out chan<- StreamChunk) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.Host+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	reader := bufio.NewReader(resp.Body)
	var accumulated []openAIToolCall
	tokens := 0

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("read stream: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.HasPrefix(line, []byte("data: ")) {
			continue
		}
		line = line[len("data: "):]
		if bytes.Equal(line, []byte("[DONE]")) {
			break
		}

		var chunk openAIStreamResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("openai stream error: %s", chunk.Error.Message)
		}
		if chunk.Usage != nil {
			tokens = chunk.Usage.TotalTokens
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			out <- StreamChunk{Type: "text", Text: choice.Delta.Content}
		}
		for _, delta := range choice.Delta.ToolCalls {
			if delta.ID != "" {
				accumulated = append(accumulated, delta)
			} else if len(accumulated) > 0 {
				accumulated[len(accumulated)-1].Function.Arguments += delta.Function.Arguments
			}
		}
		if choice.FinishReason == "stop" || choice.FinishReason == "tool_calls" {
			toolCalls, err := parseOpenAIToolCalls(accumulated)
			if err == nil {
				for i := range toolCalls {
					out <- StreamChunk{Type: "tool_call", ToolCall: &toolCalls[i]}
				}
			}
			break
		}
	}

	out <- StreamChunk{Type: "done", Tokens: tokens}
	return nil
}

// ----------------------------------------------------------------------
// helpers
// ----------------------------------------------------------------------

func (p *OpenAIProvider) buildRequest(messages []Message, tools []ToolDefinition, stream bool) openAIRequest {
	req := openAIRequest{
		Model:       p.cfg.Model,
		Messages:    make([]openAIMessage, 0, len(messages)),
		Temperature: p.cfg.Temperature,
		Stream:      stream,
	}

	// o1-/o3-series reasoning models reject max_tokens and want
	// max_completion_tokens instead.
	if strings.HasPrefix(p.cfg.Model, "o1") || strings.HasPrefix(p.cfg.Model, "o3") {
		req.MaxCompletionTokens = p.cfg.MaxTokens
	} else {
		req.MaxTokens = p.cfg.MaxTokens
	}

	for _, m := range messages {
		om := openAIMessage{Role: m.Role, Content: m.Content, ToolCallID: m.ToolCallID}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			om.ToolCalls = append(om.ToolCalls, openAIToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openAIFunctionCall{
					Name:      tc.Name,
					Arguments: string(argsJSON),
				},
			})
		}
		req.Messages = append(req.Messages, om)
	}

	if len(tools) > 0 {
		req.ToolChoice = "auto"
		for _, t := range tools {
			req.Tools = append(req.Tools, openAITool{
				Type: "function",
				Function: openAIToolFunction{
					Name:        t.Name,
					Description: t.Description,
					Parameters:  t.Parameters,
				},
			})
		}
	}
	return req
}

func parseOpenAIToolCalls(raw []openAIToolCall) ([]ToolCall, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]ToolCall, 0, len(raw))
	for _, tc := range raw {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("parse tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}
		out = append(out, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
			RawArgs:   tc.Function.Arguments,
		})
	}
	return out, nil
}
