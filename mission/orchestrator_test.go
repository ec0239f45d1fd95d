package mission

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	messages []string
	saved    int
}

func (s *fakeStore) SaveMission(context.Context, *Def) error { s.saved++; return nil }
func (s *fakeStore) AppendMessage(_ context.Context, _, _, _, content string) error {
	s.messages = append(s.messages, content)
	return nil
}

type fakeMemory struct {
	stored map[string]string
}

func newFakeMemory() *fakeMemory { return &fakeMemory{stored: map[string]string{}} }

func (m *fakeMemory) Store(_ context.Context, _, key, value string) error {
	m.stored[key] = value
	return nil
}
func (m *fakeMemory) Search(context.Context, string, string, int) ([]string, error) { return nil, nil }

type scriptedRunner struct {
	results []bool
	calls   int
}

func (r *scriptedRunner) RunPattern(context.Context, string, []string, int, string, RunNodeContext) (bool, string) {
	ok := r.results[r.calls]
	r.calls++
	return ok, ""
}

func simpleWorkflow() Workflow {
	return Workflow{
		ID: "wf-1",
		Phases: []WorkflowPhase{
			{PhaseID: "design", Name: "Design", PatternID: "solo", Config: WorkflowPhaseConfig{AgentIDs: []string{"architect"}}},
			{PhaseID: "sprint", Name: "Dev Sprint", PatternID: "sequential", Config: WorkflowPhaseConfig{AgentIDs: []string{"dev"}, MaxIterations: 1}},
		},
	}
}

func TestRunPhases_AllSucceed(t *testing.T) {
	wf := simpleWorkflow()
	m := NewMission("m1", "proj-1", "Test Mission", "ship it", wf.ID, wf)
	runner := &scriptedRunner{results: []bool{true, true}}
	orch := New(&fakeStore{}, newFakeMemory(), runner, nil, nil, nil, nil)

	err := orch.RunPhases(context.Background(), m, wf, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, m.Status)
	assert.Equal(t, PhaseDone, m.Phases[0].Status)
	assert.Equal(t, PhaseDone, m.Phases[1].Status)
}

func TestRunPhases_NonBlockingFailureDowngrades(t *testing.T) {
	wf := Workflow{Phases: []WorkflowPhase{
		{PhaseID: "docs", Name: "Docs", PatternID: "solo", Config: WorkflowPhaseConfig{AgentIDs: []string{"writer"}, Gate: "always"}},
	}}
	m := NewMission("m2", "proj-1", "Docs Mission", "write docs", wf.ID, wf)
	runner := &scriptedRunner{results: []bool{false}}
	orch := New(&fakeStore{}, newFakeMemory(), runner, nil, nil, nil, nil)

	err := orch.RunPhases(context.Background(), m, wf, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseDoneWithIssues, m.Phases[0].Status)
	assert.Equal(t, StatusCompleted, m.Status)
}

func TestRunPhases_BlockingFailureStopsMission(t *testing.T) {
	wf := Workflow{Phases: []WorkflowPhase{
		{PhaseID: "design", Name: "Design", PatternID: "solo", Config: WorkflowPhaseConfig{AgentIDs: []string{"architect"}, Gate: "no_veto"}},
	}}
	m := NewMission("m3", "proj-1", "Blocking Mission", "ship it", wf.ID, wf)
	runner := &scriptedRunner{results: []bool{false}}
	orch := New(&fakeStore{}, newFakeMemory(), runner, nil, nil, nil, nil)

	var events []string
	err := orch.RunPhases(context.Background(), m, wf, func(eventType string, _ map[string]interface{}) {
		events = append(events, eventType)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, m.Status)
	assert.Contains(t, events, "mission_failed")
}

func TestIsDevPhase(t *testing.T) {
	assert.True(t, isDevPhase("Dev Sprint 1"))
	assert.True(t, isDevPhase("Feature Implementation"))
	assert.False(t, isDevPhase("Discovery"))
}
