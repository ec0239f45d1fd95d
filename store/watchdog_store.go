package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/conductorhq/conductor/watchdog"
)

// WatchdogStore implements watchdog.Store over the same mission_runs/
// sessions/endurance_metrics tables MissionStore writes (spec §4.7's
// selection queries translated one-for-one from
// original_source/platform/ops/endurance_watchdog.py's raw SQL).
type WatchdogStore struct {
	db *DB
}

func NewWatchdogStore(db *DB) *WatchdogStore { return &WatchdogStore{db: db} }

func (s *WatchdogStore) StalledMissions(ctx context.Context, threshold time.Duration) ([]watchdog.StalledMission, error) {
	cutoff := time.Now().UTC().Add(-threshold).Format(time.RFC3339)
	query := s.db.placeholder(`SELECT id, current_phase, updated_at FROM mission_runs WHERE status = 'running' AND updated_at < ?`)
	rows, err := s.db.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []watchdog.StalledMission
	for rows.Next() {
		var id, phase, updatedAt string
		if err := rows.Scan(&id, &phase, &updatedAt); err != nil {
			return nil, err
		}
		updated, _ := time.Parse(time.RFC3339, updatedAt)
		out = append(out, watchdog.StalledMission{ID: id, CurrentPhase: phase, StallDuration: time.Since(updated)})
	}
	return out, rows.Err()
}

func (s *WatchdogStore) RecordMissionRetried(ctx context.Context, missionID string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET updated_at = ? WHERE id = ?`), nowISO(), missionID)
	return err
}

func (s *WatchdogStore) StaleSessions(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	query := s.db.placeholder(`
		SELECT s.id FROM sessions s
		WHERE s.status = 'active'
		AND COALESCE((SELECT MAX(created_at) FROM messages WHERE session_id = s.id), s.updated_at) < ?`)
	rows, err := s.db.db.QueryContext(ctx, query, cutoff.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *WatchdogStore) RecoverStaleSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, s.db.placeholder(`UPDATE sessions SET status = 'interrupted' WHERE id = ?`), sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET status = 'paused' WHERE session_id = ? AND status = 'running'`), sessionID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *WatchdogStore) FailedSessionsToClean(ctx context.Context) ([]string, error) {
	query := s.db.placeholder(`
		SELECT session_id FROM mission_runs WHERE status = 'failed'
		AND session_id IN (SELECT id FROM sessions WHERE status IN ('active', 'interrupted'))`)
	rows, err := s.db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *WatchdogStore) MarkSessionFailed(ctx context.Context, sessionID string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`UPDATE sessions SET status = 'failed' WHERE id = ?`), sessionID)
	return err
}

func (s *WatchdogStore) PhantomRuns(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold).Format(time.RFC3339)
	query := s.db.placeholder(`SELECT id FROM mission_runs WHERE status IN ('running', 'paused') AND updated_at < ?`)
	rows, err := s.db.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *WatchdogStore) AbandonRun(ctx context.Context, runID string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET status = 'abandoned', updated_at = ? WHERE id = ?`), nowISO(), runID)
	return err
}

func (s *WatchdogStore) RunningCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mission_runs WHERE status = 'running'`).Scan(&count)
	return count, err
}

func (s *WatchdogStore) EligiblePausedRuns(ctx context.Context, maxAttempts, limit int) ([]watchdog.PausedRun, error) {
	query := s.db.placeholder(`
		SELECT mr.id, mr.session_id, mr.resume_attempts, mr.last_resume_at, mr.workflow_id
		FROM mission_runs mr
		JOIN sessions s ON mr.session_id = s.id
		WHERE mr.status = 'paused'
		AND s.status IN ('interrupted', 'paused')
		AND mr.human_input_required = 0
		AND mr.resume_attempts < ?
		ORDER BY mr.updated_at ASC
		LIMIT ?`)
	rows, err := s.db.db.QueryContext(ctx, query, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []watchdog.PausedRun
	for rows.Next() {
		var id, sessionID, workflowID string
		var attempts int
		var lastResume sql.NullString
		if err := rows.Scan(&id, &sessionID, &attempts, &lastResume, &workflowID); err != nil {
			return nil, err
		}
		r := watchdog.PausedRun{ID: id, SessionID: sessionID, Attempts: attempts, HasWorkflowID: workflowID != ""}
		if lastResume.Valid {
			r.LastResumeAt, _ = time.Parse(time.RFC3339, lastResume.String)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *WatchdogStore) BeginResume(ctx context.Context, runID string, attempt int, now time.Time) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var sessionID string
	if err := tx.QueryRowContext(ctx, s.db.placeholder(`SELECT session_id FROM mission_runs WHERE id = ?`), runID).Scan(&sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.placeholder(`UPDATE sessions SET status = 'active' WHERE id = ?`), sessionID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET status = 'running', resume_attempts = ?, last_resume_at = ? WHERE id = ?`),
		attempt, now.UTC().Format(time.RFC3339), runID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *WatchdogStore) RevertToPaused(ctx context.Context, runID string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET status = 'paused' WHERE id = ?`), runID)
	return err
}

func (s *WatchdogStore) AbandonExhaustedResumes(ctx context.Context, maxAttempts int) (int, error) {
	query := s.db.placeholder(`UPDATE mission_runs SET status = 'abandoned', updated_at = ? WHERE status = 'paused' AND resume_attempts >= ? AND human_input_required = 0`)
	res, err := s.db.db.ExecContext(ctx, query, nowISO(), maxAttempts)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *WatchdogStore) ZombieRunning(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold).Format(time.RFC3339)
	rows, err := s.db.db.QueryContext(ctx, s.db.placeholder(`SELECT id FROM mission_runs WHERE status = 'running' AND updated_at < ?`), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *WatchdogStore) ZombiePaused(ctx context.Context, threshold time.Duration) ([]string, error) {
	cutoff := time.Now().UTC().Add(-threshold).Format(time.RFC3339)
	rows, err := s.db.db.QueryContext(ctx, s.db.placeholder(`SELECT id FROM mission_runs WHERE status = 'paused' AND updated_at < ?`), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *WatchdogStore) FailRun(ctx context.Context, runID, reason string) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`UPDATE mission_runs SET status = 'failed', updated_at = ? WHERE id = ?`), nowISO(), runID)
	_ = reason // not stored (current_phase is an integer column) and not logged by the watchdog
	return err
}

func (s *WatchdogStore) DailyStats(ctx context.Context, utcDate string) (watchdog.DailyStats, error) {
	var stats watchdog.DailyStats
	likePattern := utcDate + "%"

	row := s.db.db.QueryRowContext(ctx, s.db.placeholder(`SELECT COUNT(*) FROM endurance_metrics WHERE metric = 'phase_complete' AND ts LIKE ?`), likePattern)
	if err := row.Scan(&stats.PhasesCompleted); err != nil {
		return stats, err
	}
	row = s.db.db.QueryRowContext(ctx, s.db.placeholder(`SELECT COUNT(*) FROM endurance_metrics WHERE metric = 'stall_detected' AND ts LIKE ?`), likePattern)
	if err := row.Scan(&stats.Stalls); err != nil {
		return stats, err
	}
	return stats, nil
}

// LogMetric implements watchdog.MetricsSink against endurance_metrics (spec
// §4.7 preamble: "Each check failure is logged to a metrics table").
func (s *WatchdogStore) LogMetric(ctx context.Context, metric string, value float64, detail string) error {
	query := s.db.placeholder(`INSERT INTO endurance_metrics (ts, metric, value, detail) VALUES (?, ?, ?, ?)`)
	_, err := s.db.db.ExecContext(ctx, query, nowISO(), metric, value, detail)
	return err
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

var (
	_ watchdog.Store       = (*WatchdogStore)(nil)
	_ watchdog.MetricsSink = (*WatchdogStore)(nil)
)
