package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/llms"
	"github.com/conductorhq/conductor/tool"
)

type scriptedProvider struct {
	responses []llms.Response
	calls     int
}

func (p *scriptedProvider) Generate(_ context.Context, _ []llms.Message, _ []llms.ToolDefinition) (llms.Response, error) {
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) GenerateStreaming(context.Context, []llms.Message, []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	return nil, nil
}
func (p *scriptedProvider) ModelName() string    { return "scripted" }
func (p *scriptedProvider) MaxTokens() int       { return 4096 }
func (p *scriptedProvider) Temperature() float64 { return 0 }
func (p *scriptedProvider) Close() error         { return nil }

type fakeTools struct {
	defs []tool.Definition
	exec func(name string, args map[string]interface{}) string
}

func (f *fakeTools) Filtered(tool.Predicate) []tool.Definition { return f.defs }
func (f *fakeTools) Execute(_ context.Context, name string, args map[string]interface{}) string {
	return f.exec(name, args)
}

type allowAllGuard struct{ checks int }

func (g *allowAllGuard) Check(context.Context, string, map[string]interface{}, string, string) (string, error) {
	g.checks++
	return "", nil
}

func devAgent() agent.Def {
	return agent.Def{ID: "agent-1", Name: "Dev Agent", Role: "dev"}
}

func TestExecutor_Run_NoToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []llms.Response{{Content: "Here is the answer."}}}
	ex := New(provider, &fakeTools{}, nil)

	result := ex.Run(context.Background(), RunContext{Agent: devAgent(), ToolsEnabled: true}, "do the thing", "")
	assert.Equal(t, "Here is the answer.", result.Content)
	assert.Equal(t, 1, result.IterationsUsed)
	assert.NoError(t, result.Error)
}

func TestExecutor_Run_ExecutesToolThenFinishes(t *testing.T) {
	provider := &scriptedProvider{responses: []llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "1", Name: "list_files", Arguments: map[string]interface{}{}}}},
		{Content: "Done."},
	}}
	tools := &fakeTools{
		defs: []tool.Definition{{Name: "list_files"}},
		exec: func(name string, _ map[string]interface{}) string { return "a.txt\nb.txt" },
	}
	guard := &allowAllGuard{}
	ex := New(provider, tools, guard)

	result := ex.Run(context.Background(), RunContext{Agent: devAgent(), ToolsEnabled: true}, "list files", "")
	assert.Equal(t, "Done.", result.Content)
	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, 1, guard.checks)
	assert.Equal(t, 2, result.IterationsUsed)
}

func TestExecutor_Run_GuardrailBlockFeedsMessageBack(t *testing.T) {
	provider := &scriptedProvider{responses: []llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "1", Name: "build", Arguments: map[string]interface{}{"command": "rm -rf /"}}}},
		{Content: "Understood, will not do that."},
	}}
	tools := &fakeTools{
		defs: []tool.Definition{{Name: "build"}},
		exec: func(string, map[string]interface{}) string { t.Fatal("tool should not execute when guardrail blocks"); return "" },
	}
	blockingGuard := blockFunc(func(context.Context, string, map[string]interface{}, string, string) (string, error) {
		return "[GUARDRAIL BLOCKED] build: command matched rule", nil
	})
	ex := New(provider, tools, blockingGuard)

	result := ex.Run(context.Background(), RunContext{Agent: devAgent(), ToolsEnabled: true}, "run it", "")
	assert.Equal(t, "Understood, will not do that.", result.Content)
}

type blockFunc func(context.Context, string, map[string]interface{}, string, string) (string, error)

func (f blockFunc) Check(ctx context.Context, name string, args map[string]interface{}, actorID, sessionID string) (string, error) {
	return f(ctx, name, args, actorID, sessionID)
}

func TestExecutor_Run_RecordsArtifactOnCodeWrite(t *testing.T) {
	provider := &scriptedProvider{responses: []llms.Response{
		{ToolCalls: []llms.ToolCall{{ID: "1", Name: "code_write", Arguments: map[string]interface{}{"path": "main.go", "language": "go", "content": "package main"}}}},
		{Content: "Wrote the file."},
	}}
	tools := &fakeTools{
		defs: []tool.Definition{{Name: "code_write"}},
		exec: func(string, map[string]interface{}) string { return "ok" },
	}
	ex := New(provider, tools, &allowAllGuard{})

	result := ex.Run(context.Background(), RunContext{Agent: devAgent(), SessionID: "sess-1", ToolsEnabled: true}, "write main.go", "")
	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, "main.go", result.Artifacts[0].Path)
	assert.Equal(t, "agent-1", result.Artifacts[0].CreatedBy)
}

func TestExecutor_Run_MaxToolRoundsExhausted(t *testing.T) {
	responses := make([]llms.Response, MaxToolRounds)
	for i := range responses {
		responses[i] = llms.Response{ToolCalls: []llms.ToolCall{{ID: "1", Name: "list_files"}}}
	}
	provider := &scriptedProvider{responses: responses}
	tools := &fakeTools{
		defs: []tool.Definition{{Name: "list_files"}},
		exec: func(string, map[string]interface{}) string { return "x" },
	}
	ex := New(provider, tools, &allowAllGuard{})

	result := ex.Run(context.Background(), RunContext{Agent: devAgent(), ToolsEnabled: true}, "go forever", "")
	assert.Equal(t, "(Max tool rounds reached)", result.Content)
	assert.Error(t, result.Error)
}

func TestParseDelegations(t *testing.T) {
	text := "Summary done.\n[DELEGATE:qa-agent] verify the login flow\nmore text"
	delegations := ParseDelegations(text)
	require.Len(t, delegations, 1)
	assert.Equal(t, "qa-agent", delegations[0].AgentID)
	assert.Equal(t, "verify the login flow", delegations[0].Task)
}

func TestStripRawProviderTokens(t *testing.T) {
	text := "before <think>internal reasoning</think> after <invoke name=\"x\">body</invoke> end"
	assert.Equal(t, "before  after  end", StripRawProviderTokens(text))
}

func TestLiftXMLToolCalls(t *testing.T) {
	text := `<invoke name="list_files"><parameter name="path">src</parameter></invoke>`
	calls := LiftXMLToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "list_files", calls[0].Name)
	assert.Equal(t, "src", calls[0].Arguments["path"])
}

func TestBuildSystemPrompt_IncludesIdentityAndPermissions(t *testing.T) {
	rc := RunContext{
		Agent: agent.Def{
			Name: "Dev Agent", Role: "dev",
			Permissions: agent.Permissions{CanDelegate: true},
		},
		ToolsEnabled: true,
	}
	prompt := BuildSystemPrompt(rc, "")
	assert.Contains(t, prompt, "You are Dev Agent, role: dev")
	assert.Contains(t, prompt, "DELEGATE")
}

func TestToolPredicate_DevRoleAllowsCodeWrite(t *testing.T) {
	pred := ToolPredicate(devAgent())
	assert.True(t, pred(stubTool{"code_write"}))
	assert.False(t, pred(stubTool{"screenshot"}))
	assert.True(t, pred(stubTool{"memory_search"})) // universal
}

type stubTool struct{ name string }

func (s stubTool) Name() string                                                     { return s.name }
func (s stubTool) Description() string                                              { return "" }
func (s stubTool) Schema() map[string]interface{}                                   { return nil }
func (s stubTool) Execute(context.Context, map[string]interface{}) (string, error) { return "", nil }
