package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/mission"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open("sqlite3", "file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveMission_RoundTrips(t *testing.T) {
	db := openTestDB(t)
	ms := NewMissionStore(db)

	m := &mission.Def{
		ID:         "mis-1",
		ProjectID:  "proj-1",
		Name:       "Ship it",
		WorkflowID: "wf-1",
		Status:     mission.StatusRunning,
		Phases: []mission.Phase{
			{PhaseID: "design", Status: mission.PhaseDone, Summary: "done"},
			{PhaseID: "sprint", Status: mission.PhasePending},
		},
		CreatedAt: time.Now().UTC(),
	}

	require.NoError(t, ms.SaveMission(context.Background(), m))

	var status string
	var currentPhase int
	require.NoError(t, db.db.QueryRow(`SELECT status, current_phase FROM mission_runs WHERE id = ?`, m.ID).Scan(&status, &currentPhase))
	assert.Equal(t, "running", status)

	var phaseCount int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM phases WHERE mission_run_id = ?`, m.ID).Scan(&phaseCount))
	assert.Equal(t, 2, phaseCount)
}

func TestAppendMessage(t *testing.T) {
	db := openTestDB(t)
	ms := NewMissionStore(db)

	_, err := db.db.Exec(`INSERT INTO sessions (id, status, created_at, updated_at) VALUES ('s1', 'active', ?, ?)`, nowISO(), nowISO())
	require.NoError(t, err)

	require.NoError(t, ms.AppendMessage(context.Background(), "s1", "architect", "text", "hello"))

	var count int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE session_id = 's1'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestMemoryStore_StoreAndSearch(t *testing.T) {
	db := openTestDB(t)
	mem := NewMemoryStore(db)
	ctx := context.Background()

	require.NoError(t, mem.StoreCategory(ctx, "proj-1", "backlog: add oauth", "[high] add oauth", "product"))
	require.NoError(t, mem.StoreCategory(ctx, "proj-1", "backlog: refactor billing", "[medium] refactor billing", "product"))

	values, err := mem.Search(ctx, "proj-1", "product", 10)
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestWatchdogStore_RunningCount(t *testing.T) {
	db := openTestDB(t)
	ws := NewWatchdogStore(db)

	_, err := db.db.Exec(`INSERT INTO mission_runs (id, mission_id, workflow_id, project_id, status, current_phase, workspace_path, resume_attempts, human_input_required, created_at, updated_at) VALUES ('r1','m1','wf','p1','running',0,'',0,0,?,?)`, nowISO(), nowISO())
	require.NoError(t, err)

	count, err := ws.RunningCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
