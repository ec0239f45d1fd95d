package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/errs"
	"github.com/conductorhq/conductor/eventbus"
	"github.com/conductorhq/conductor/mission"
)

// fakeStore is an in-memory mission.Store + MissionReader, standing in for
// store.MissionStore in tests (mirrors the fakes used in mission's own test
// suite).
type fakeStore struct {
	mu       sync.Mutex
	missions map[string]*mission.Def
}

func newFakeStore() *fakeStore { return &fakeStore{missions: make(map[string]*mission.Def)} }

func (f *fakeStore) SaveMission(ctx context.Context, m *mission.Def) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *m
	f.missions[m.ID] = &cp
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, sessionID, fromAgent, messageType, content string) error {
	return nil
}

func (f *fakeStore) GetMission(ctx context.Context, id string) (*mission.Def, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.missions[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) ListMissions(ctx context.Context, projectID string) ([]*mission.Def, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*mission.Def
	for _, m := range f.missions {
		if projectID == "" || m.ProjectID == projectID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, id string, status mission.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.missions[id]; ok {
		m.Status = status
	}
	return nil
}

// fakePatternRunner completes instantly, succeeding unless told otherwise.
type fakePatternRunner struct{ fail bool }

func (f *fakePatternRunner) RunPattern(ctx context.Context, patternID string, agentIDs []string, maxIterations int, task string, nc mission.RunNodeContext) (bool, string) {
	if nc.OnEvent != nil {
		nc.OnEvent("node_ran", map[string]interface{}{"pattern_id": patternID})
	}
	if f.fail {
		return false, "boom"
	}
	return true, ""
}

func testConfig() *config.Config {
	return &config.Config{
		Workflows: map[string]config.WorkflowConfig{
			"solo": {
				ID:   "solo",
				Name: "Solo workflow",
				Phases: []config.WorkflowPhaseDef{
					{PhaseID: "design", Name: "design", PatternID: "single-agent"},
				},
			},
		},
	}
}

func newTestServer(t *testing.T, fail bool) (*Server, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	orch := mission.New(store, nil, &fakePatternRunner{fail: fail}, nil, nil, nil, nil)
	bus := eventbus.New()
	srv := New(&config.ServerConfig{Host: "127.0.0.1", Port: 0}, orch, store, testConfig(), bus)
	return srv, store
}

func TestHandleStartMission(t *testing.T) {
	srv, _ := newTestServer(t, false)
	router := srv.router()

	body := strings.NewReader(`{"project_id":"p1","name":"launch","brief":"ship it","workflow_id":"solo"}`)
	req := httptest.NewRequest(http.MethodPost, "/missions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp missionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p1", resp.ProjectID)
	assert.NotEmpty(t, resp.ID)

	assert.Eventually(t, func() bool {
		m, err := srv.runner.Get(context.Background(), resp.ID)
		return err == nil && m.Status == mission.StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestHandleStartMission_UnknownWorkflow(t *testing.T) {
	srv, _ := newTestServer(t, false)
	router := srv.router()

	body := strings.NewReader(`{"workflow_id":"does-not-exist"}`)
	req := httptest.NewRequest(http.MethodPost, "/missions", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleListAndGetMission(t *testing.T) {
	srv, store := newTestServer(t, false)
	router := srv.router()

	m := mission.NewMission("m1", "proj", "n", "b", "solo", mission.Workflow{ID: "solo", Phases: []mission.WorkflowPhase{{PhaseID: "design"}}})
	m.Status = mission.StatusCompleted
	require.NoError(t, store.SaveMission(context.Background(), m))

	req := httptest.NewRequest(http.MethodGet, "/missions?project_id=proj", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []missionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "m1", list[0].ID)

	req2 := httptest.NewRequest(http.MethodGet, "/missions/m1", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req3 := httptest.NewRequest(http.MethodGet, "/missions/does-not-exist", nil)
	rec3 := httptest.NewRecorder()
	router.ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusNotFound, rec3.Code)
}

func TestHandlePauseAndResumeMission(t *testing.T) {
	srv, store := newTestServer(t, false)
	router := srv.router()

	m := mission.NewMission("m2", "proj", "n", "b", "solo", mission.Workflow{ID: "solo", Phases: []mission.WorkflowPhase{{PhaseID: "design"}}})
	m.Status = mission.StatusRunning
	require.NoError(t, store.SaveMission(context.Background(), m))

	// Pause fails: the runner has no in-flight goroutine for this ID since
	// it wasn't started through Runner.Start.
	req := httptest.NewRequest(http.MethodPost, "/missions/m2/pause", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.NoError(t, store.UpdateStatus(context.Background(), "m2", mission.StatusPaused))

	req2 := httptest.NewRequest(http.MethodPost, "/missions/m2/resume", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)

	assert.Eventually(t, func() bool {
		m, err := srv.runner.Get(context.Background(), "m2")
		return err == nil && m.Status == mission.StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
