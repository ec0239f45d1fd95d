package store

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/conductorhq/conductor/mission"
)

// TestPostgresDialect_RoundTrips runs the same mission round-trip
// store_test.go exercises against sqlite, but against a real postgres
// container, to prove the `?` -> `$n` placeholder rewrite in db.go's
// placeholder() actually produces valid postgres SQL rather than just
// sqlite SQL that happens to parse. Grounded on
// codeready-toolchain-tarsy's test/util/database.go shared-testcontainer
// pattern (one container started once, per-test isolation done with a
// fresh schema instead of a fresh container).
//
// store.Open skips its embedded sqlite-flavored migration set for any
// non-sqlite dialect (see db.go's doc comment: postgres schema management
// is left to an operator-run tool). This test plays that operator: it
// applies a postgres-flavored translation of the same migration (just
// AUTOINCREMENT -> SERIAL, the only sqlite-specific construct in it)
// before handing the connection to store.Open.
func TestPostgresDialect_RoundTrips(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping testcontainers-backed postgres test in -short mode")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("conductor_test"),
		postgres.WithUsername("conductor"),
		postgres.WithPassword("conductor"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("docker unavailable, skipping postgres integration test: %v", err)
	}
	t.Cleanup(func() { _ = pgContainer.Terminate(ctx) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	applyPostgresSchema(t, connStr)

	db, err := Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ms := NewMissionStore(db)
	m := &mission.Def{
		ID:         "mis-pg-1",
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
	require.NoError(t, ms.SaveMission(ctx, m))

	var status string
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT status FROM mission_runs WHERE id = $1`, m.ID).Scan(&status))
	require.Equal(t, "running", status)

	var phaseCount int
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM phases WHERE mission_run_id = $1`, m.ID).Scan(&phaseCount))
	require.Equal(t, 2, phaseCount)
}

func applyPostgresSchema(t *testing.T, connStr string) {
	t.Helper()
	raw, err := migrationFS.ReadFile("migrations/0001_init.up.sql")
	require.NoError(t, err)

	pgSQL := strings.ReplaceAll(string(raw), "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")

	rawDB, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	defer rawDB.Close()

	for _, stmt := range strings.Split(pgSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := rawDB.Exec(stmt)
		require.NoErrorf(t, err, "exec: %s", stmt)
	}
}
