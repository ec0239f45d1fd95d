package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/llms"
)

type fakeProvider struct{ name string }

func (f fakeProvider) Generate(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (llms.Response, error) {
	return llms.Response{Content: "summary of " + f.name}, nil
}
func (f fakeProvider) GenerateStreaming(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, nil
}
func (f fakeProvider) ModelName() string    { return f.name }
func (f fakeProvider) MaxTokens() int       { return 4096 }
func (f fakeProvider) Temperature() float64 { return 0 }
func (f fakeProvider) Close() error         { return nil }

func TestPickDefaultProviderPrefersNamedDefault(t *testing.T) {
	reg := llms.NewRegistry()
	require.NoError(t, reg.Register("zeta", fakeProvider{name: "zeta"}))
	require.NoError(t, reg.Register("default", fakeProvider{name: "default"}))

	cfg := &config.Config{LLMs: map[string]config.LLMProviderConfig{
		"zeta":    {},
		"default": {},
	}}

	p, err := pickDefaultProvider(cfg, reg)
	require.NoError(t, err)
	assert.Equal(t, "default", p.ModelName())
}

func TestPickDefaultProviderFallsBackToLexicographicallyFirst(t *testing.T) {
	reg := llms.NewRegistry()
	require.NoError(t, reg.Register("zeta", fakeProvider{name: "zeta"}))
	require.NoError(t, reg.Register("alpha", fakeProvider{name: "alpha"}))

	cfg := &config.Config{LLMs: map[string]config.LLMProviderConfig{
		"zeta":  {},
		"alpha": {},
	}}

	p, err := pickDefaultProvider(cfg, reg)
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.ModelName(), "must be deterministic across restarts despite map iteration order")
}

func TestPickDefaultProviderErrorsWhenNoProvidersConfigured(t *testing.T) {
	reg := llms.NewRegistry()
	cfg := &config.Config{}

	_, err := pickDefaultProvider(cfg, reg)
	assert.Error(t, err)
}

func TestLLMSummarizerTruncatesOverlongOutput(t *testing.T) {
	s := newLLMSummarizer(fakeProvider{name: "overlong-provider-name-that-exceeds-the-cap"})
	out, err := s.Summarize(context.Background(), "some transcript", 10)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(out), 10)
}
