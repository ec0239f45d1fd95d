package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/httpclient"
)

// OllamaProvider implements Provider against a local or self-hosted Ollama
// server's /api/chat endpoint (tool-calling capable, unlike the older
// /api/generate prompt endpoint).
type OllamaProvider struct {
	cfg    *config.LLMProviderConfig
	client *httpclient.Client
}

func NewOllamaProvider(cfg *config.LLMProviderConfig) (*OllamaProvider, error) {
	cfg.SetDefaults()
	if cfg.Host == "" {
		cfg.Host = "http://localhost:11434"
	}
	return &OllamaProvider{
		cfg: cfg,
		client: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second}),
			httpclient.WithMaxRetries(cfg.MaxRetries),
			httpclient.WithBaseDelay(time.Duration(cfg.RetryDelaySec)*time.Second),
		),
	}, nil
}

func (p *OllamaProvider) ModelName() string    { return p.cfg.Model }
func (p *OllamaProvider) MaxTokens() int       { return p.cfg.MaxTokens }
func (p *OllamaProvider) Temperature() float64 { return p.cfg.Temperature }
func (p *OllamaProvider) Close() error         { return nil }

type ollamaMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

type ollamaTool struct {
	Type     string           `json:"type"`
	Function ollamaToolFunc   `json:"function"`
}

type ollamaToolFunc struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []ollamaTool    `json:"tools,omitempty"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

func (p *OllamaProvider) buildRequest(messages []Message, tools []ToolDefinition, stream bool) ollamaChatRequest {
	req := ollamaChatRequest{
		Model:  p.cfg.Model,
		Stream: stream,
		Options: ollamaOptions{
			Temperature: p.cfg.Temperature,
			NumPredict:  p.cfg.MaxTokens,
		},
	}
	for _, m := range messages {
		om := ollamaMessage{Role: m.Role, Content: m.Content}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{Name: tc.Name, Arguments: tc.Arguments},
			})
		}
		req.Messages = append(req.Messages, om)
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, ollamaTool{
			Type: "function",
			Function: ollamaToolFunc{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return req
}

func (p *OllamaProvider) Generate(ctx context.Context, messages []Message, tools []ToolDefinition) (Response, error) {
	body, err := json.Marshal(p.buildRequest(messages, tools, false))
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}

	var toolCalls []ToolCall
	for _, tc := range parsed.Message.ToolCalls {
		argsJSON, _ := json.Marshal(tc.Function.Arguments)
		toolCalls = append(toolCalls, ToolCall{
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
			RawArgs:   string(argsJSON),
		})
	}

	return Response{
		Content:   parsed.Message.Content,
		ToolCalls: toolCalls,
	}, nil
}

func (p *OllamaProvider) GenerateStreaming(ctx context.Context, messages []Message, tools []ToolDefinition) (<-chan StreamChunk, error) {
	body, err := json.Marshal(p.buildRequest(messages, tools, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.cfg.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}

	out := make(chan StreamChunk)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(resp.Body)
			out <- StreamChunk{Type: "error", Error: fmt.Errorf("ollama request failed with status %d: %s", resp.StatusCode, string(raw))}
			return
		}

		decoder := json.NewDecoder(resp.Body)
		for {
			var chunk ollamaChatResponse
			if err := decoder.Decode(&chunk); err != nil {
				if err == io.EOF {
					break
				}
				out <- StreamChunk{Type: "error", Error: fmt.Errorf("decode stream chunk: %w", err)}
				return
			}
			if chunk.Message.Content != "" {
				out <- StreamChunk{Type: "text", Text: chunk.Message.Content}
			}
			for _, tc := range chunk.Message.ToolCalls {
				argsJSON, _ := json.Marshal(tc.Function.Arguments)
				call := ToolCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments, RawArgs: string(argsJSON)}
				out <- StreamChunk{Type: "tool_call", ToolCall: &call}
			}
			if chunk.Done {
				break
			}
		}
		out <- StreamChunk{Type: "done"}
	}()
	return out, nil
}
