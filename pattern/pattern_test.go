package pattern

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/executor"
	"github.com/conductorhq/conductor/llms"
	"github.com/conductorhq/conductor/tool"
)

// scriptedProvider returns one fixed response per agent, keyed by the
// system prompt's "You are <name>" line the executor always emits first.
type scriptedProvider struct {
	byAgent map[string]string
	calls   int
}

func (p *scriptedProvider) Generate(_ context.Context, messages []llms.Message, _ []llms.ToolDefinition) (llms.Response, error) {
	p.calls++
	return llms.Response{Content: p.pick(messages)}, nil
}

func (p *scriptedProvider) GenerateStreaming(_ context.Context, messages []llms.Message, _ []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	out := make(chan llms.StreamChunk, 2)
	content := p.pick(messages)
	out <- llms.StreamChunk{Type: "text", Text: content}
	out <- llms.StreamChunk{Type: "done"}
	close(out)
	p.calls++
	return out, nil
}

func (p *scriptedProvider) pick(messages []llms.Message) string {
	system := ""
	if len(messages) > 0 {
		system = messages[0].Content
	}
	for name, resp := range p.byAgent {
		if contains(system, "You are "+name) {
			return resp
		}
	}
	return "Done."
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func (p *scriptedProvider) ModelName() string    { return "scripted" }
func (p *scriptedProvider) MaxTokens() int       { return 4096 }
func (p *scriptedProvider) Temperature() float64 { return 0 }
func (p *scriptedProvider) Close() error         { return nil }

type noopTools struct{}

func (noopTools) Filtered(tool.Predicate) []tool.Definition { return nil }
func (noopTools) Execute(context.Context, string, map[string]interface{}) string { return "" }

type fakeAgents struct {
	byID map[string]agent.Def
}

func (f fakeAgents) Resolve(id string) (agent.Def, bool) {
	d, ok := f.byID[id]
	return d, ok
}

func newAgents(defs ...agent.Def) fakeAgents {
	byID := make(map[string]agent.Def, len(defs))
	for _, d := range defs {
		byID[d.ID] = d
	}
	return fakeAgents{byID: byID}
}

func newEngine(byAgent map[string]string, agents fakeAgents) *Engine {
	provider := &scriptedProvider{byAgent: byAgent}
	ex := executor.New(provider, noopTools{}, nil)
	return New(ex, agents, nil)
}

func TestEngine_Solo(t *testing.T) {
	agents := newAgents(agent.Def{ID: "writer", Name: "Writer", Role: "dev"})
	engine := newEngine(map[string]string{"Writer": "Wrote it."}, agents)

	def := Def{Type: TypeSolo, Nodes: []Node{{ID: "n1", AgentID: "writer"}}}
	result := engine.Run(context.Background(), def, NodeContext{}, "write the doc")

	require.True(t, result.Success)
	require.Len(t, result.Nodes, 1)
	assert.Equal(t, "Wrote it.", result.Nodes[0].Output)
	assert.Equal(t, NodeCompleted, result.Nodes[0].Status)
}

func TestEngine_Sequential_HaltsOnVeto(t *testing.T) {
	agents := newAgents(
		agent.Def{ID: "a1", Name: "Architect", Role: "architecture"},
		agent.Def{ID: "a2", Name: "Reviewer", Role: "qa"},
		agent.Def{ID: "a3", Name: "Closer", Role: "dev"},
	)
	engine := newEngine(map[string]string{
		"Architect": "Here is the plan.",
		"Reviewer":  "[VETO] not acceptable",
		"Closer":    "should never run",
	}, agents)

	def := Def{
		Type: TypeSequential,
		Nodes: []Node{
			{ID: "n1", AgentID: "a1"},
			{ID: "n2", AgentID: "a2"},
			{ID: "n3", AgentID: "a3"},
		},
	}
	result := engine.Run(context.Background(), def, NodeContext{}, "ship the feature")

	assert.False(t, result.Success)
	assert.Equal(t, NodeCompleted, result.Nodes[0].Status)
	assert.Equal(t, NodeVetoed, result.Nodes[1].Status)
	assert.Equal(t, NodePending, result.Nodes[2].Status)
}

func TestEngine_Parallel_AllRun(t *testing.T) {
	agents := newAgents(
		agent.Def{ID: "a1", Name: "One", Role: "dev"},
		agent.Def{ID: "a2", Name: "Two", Role: "dev"},
	)
	engine := newEngine(map[string]string{"One": "done one", "Two": "done two"}, agents)

	def := Def{
		Type: TypeParallel,
		Nodes: []Node{
			{ID: "n1", AgentID: "a1"},
			{ID: "n2", AgentID: "a2"},
		},
	}
	result := engine.Run(context.Background(), def, NodeContext{}, "investigate")
	assert.True(t, result.Success)
	for _, n := range result.Nodes {
		assert.Equal(t, NodeCompleted, n.Status)
	}
}

func TestEngine_Loop_StopsOnApproval(t *testing.T) {
	agents := newAgents(
		agent.Def{ID: "producer", Name: "Producer", Role: "dev"},
		agent.Def{ID: "reviewer", Name: "Reviewer", Role: "qa"},
	)
	engine := newEngine(map[string]string{
		"Producer": "attempt",
		"Reviewer": "GO",
	}, agents)

	def := Def{
		Type:          TypeLoop,
		MaxIterations: 5,
		Nodes: []Node{
			{ID: "n1", AgentID: "producer"},
			{ID: "n2", AgentID: "reviewer"},
		},
	}
	result := engine.Run(context.Background(), def, NodeContext{}, "build the feature")
	assert.True(t, result.Success)
}

func TestEngine_HumanInLoop_StopsAtHumanSlot(t *testing.T) {
	agents := newAgents(agent.Def{ID: "a1", Name: "Drafter", Role: "dev"})
	engine := newEngine(map[string]string{"Drafter": "draft ready"}, agents)

	checkpointed := false
	def := Def{
		Type: TypeHumanInLoop,
		Nodes: []Node{
			{ID: "n1", AgentID: "a1"},
			{ID: "n2", AgentID: ""},
		},
	}
	nc := NodeContext{OnEvent: func(eventType string, data map[string]interface{}) {
		if eventType == "checkpoint" {
			checkpointed = true
		}
	}}
	result := engine.Run(context.Background(), def, nc, "prepare release notes")

	assert.True(t, checkpointed)
	assert.Equal(t, NodeCompleted, result.Nodes[0].Status)
	assert.Equal(t, NodePending, result.Nodes[1].Status)
}

func TestEngine_UnknownType(t *testing.T) {
	agents := newAgents()
	engine := newEngine(map[string]string{}, agents)
	result := engine.Run(context.Background(), Def{Type: "bogus"}, NodeContext{}, "task")
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unknown pattern type")
}

func TestCompress_SingleEntryVerbatim(t *testing.T) {
	out := Compress([]Entry{{AgentName: "A", Output: "short output"}})
	assert.Contains(t, out, "short output")
}

func TestDetectOutcome(t *testing.T) {
	assert.Equal(t, NodeVetoed, DetectOutcome("NOGO"))
	assert.Equal(t, NodeVetoed, DetectOutcome("After review: [VETO] this is broken"))
	assert.Equal(t, NodeCompleted, DetectOutcome("GO"))
	assert.Equal(t, NodeCompleted, DetectOutcome("Looks fine to me."))
}
