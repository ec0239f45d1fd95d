package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/errs"
	"github.com/conductorhq/conductor/mission"
)

// MissionStore persists mission.Def/Phase and session messages (spec §6
// "Persisted state layout": mission_runs, phases, sessions, messages).
// Implements mission.Store directly; watchdog.Store is implemented by
// WatchdogStore in watchdog_store.go over the same tables.
type MissionStore struct {
	db *DB
}

func NewMissionStore(db *DB) *MissionStore { return &MissionStore{db: db} }

func nowISO() string { return time.Now().UTC().Format(time.RFC3339) }

// SaveMission upserts a mission run and replaces its phase rows (spec §3
// "A MissionDef owns its PhaseState list"; REDESIGN FLAG #3 treats phases
// as first-class rows, not a phases_json blob).
func (s *MissionStore) SaveMission(ctx context.Context, m *mission.Def) error {
	tx, err := s.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin save mission: %w", err)
	}
	defer tx.Rollback()

	humanRequired := 0
	if m.HumanInputRequired {
		humanRequired = 1
	}
	var lastResume sql.NullString
	if !m.LastResumeAt.IsZero() {
		lastResume = sql.NullString{String: m.LastResumeAt.UTC().Format(time.RFC3339), Valid: true}
	}

	upsertQuery := s.db.placeholder(`
		INSERT INTO mission_runs (id, mission_id, session_id, workflow_id, project_id, status, current_phase, workspace_path, resume_attempts, last_resume_at, human_input_required, created_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			current_phase = excluded.current_phase,
			workspace_path = excluded.workspace_path,
			resume_attempts = excluded.resume_attempts,
			last_resume_at = excluded.last_resume_at,
			human_input_required = excluded.human_input_required,
			updated_at = excluded.updated_at`)
	if s.db.dialect == DialectMySQL {
		upsertQuery = `
		INSERT INTO mission_runs (id, mission_id, session_id, workflow_id, project_id, status, current_phase, workspace_path, resume_attempts, last_resume_at, human_input_required, created_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			current_phase = VALUES(current_phase),
			workspace_path = VALUES(workspace_path),
			resume_attempts = VALUES(resume_attempts),
			last_resume_at = VALUES(last_resume_at),
			human_input_required = VALUES(human_input_required),
			updated_at = VALUES(updated_at)`
	}

	now := nowISO()
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx, upsertQuery,
		m.ID, m.ID, m.WorkflowID, m.ProjectID, string(m.Status), m.CurrentPhase, m.WorkspacePath,
		m.ResumeAttempts, lastResume, humanRequired, createdAt.Format(time.RFC3339), now,
	); err != nil {
		return fmt.Errorf("store: upsert mission_run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, s.db.placeholder(`DELETE FROM phases WHERE mission_run_id = ?`), m.ID); err != nil {
		return fmt.Errorf("store: clear phases: %w", err)
	}

	insertPhase := s.db.placeholder(`
		INSERT INTO phases (id, mission_run_id, phase_id, position, status, agent_count, summary, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, p := range m.Phases {
		var startedAt, completedAt sql.NullString
		if !p.StartedAt.IsZero() {
			startedAt = sql.NullString{String: p.StartedAt.UTC().Format(time.RFC3339), Valid: true}
		}
		if !p.CompletedAt.IsZero() {
			completedAt = sql.NullString{String: p.CompletedAt.UTC().Format(time.RFC3339), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, insertPhase,
			uuid.NewString(), m.ID, p.PhaseID, i, string(p.Status), p.AgentCount, p.Summary, startedAt, completedAt,
		); err != nil {
			return fmt.Errorf("store: insert phase %s: %w", p.PhaseID, err)
		}
	}

	return tx.Commit()
}

// AppendMessage appends one durable chat message to a session (spec §6
// "add_message(MessageDef) — must be durable before returning").
func (s *MissionStore) AppendMessage(ctx context.Context, sessionID, fromAgent, messageType, content string) error {
	query := s.db.placeholder(`INSERT INTO messages (id, session_id, from_agent, message_type, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.db.ExecContext(ctx, query, uuid.NewString(), sessionID, fromAgent, messageType, content, nowISO())
	if err != nil {
		return fmt.Errorf("store: append message: %w", err)
	}
	return nil
}

// GetMission loads one mission run and its phases, for the Mission Control
// API's status lookups (the runner's Get and Resume read it; Pause and
// Cancel update the status without reading it first).
func (s *MissionStore) GetMission(ctx context.Context, id string) (*mission.Def, error) {
	row := s.db.db.QueryRowContext(ctx, s.db.placeholder(`
		SELECT mission_id, workflow_id, project_id, status, current_phase, workspace_path,
		       resume_attempts, last_resume_at, human_input_required, created_at, updated_at
		FROM mission_runs WHERE id = ?`), id)

	m := &mission.Def{ID: id}
	var status string
	var humanRequired int
	var lastResume sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&m.ID, &m.WorkflowID, &m.ProjectID, &status, &m.CurrentPhase, &m.WorkspacePath,
		&m.ResumeAttempts, &lastResume, &humanRequired, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("store: mission %s: %w", id, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("store: get mission %s: %w", id, err)
	}
	m.Status = mission.Status(status)
	m.HumanInputRequired = humanRequired != 0
	if lastResume.Valid {
		m.LastResumeAt, _ = time.Parse(time.RFC3339, lastResume.String)
	}
	m.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	phases, err := s.loadPhases(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Phases = phases
	return m, nil
}

func (s *MissionStore) loadPhases(ctx context.Context, missionRunID string) ([]mission.Phase, error) {
	rows, err := s.db.db.QueryContext(ctx, s.db.placeholder(`
		SELECT phase_id, status, agent_count, summary, started_at, completed_at
		FROM phases WHERE mission_run_id = ? ORDER BY position ASC`), missionRunID)
	if err != nil {
		return nil, fmt.Errorf("store: load phases: %w", err)
	}
	defer rows.Close()

	var phases []mission.Phase
	for rows.Next() {
		var p mission.Phase
		var status string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&p.PhaseID, &status, &p.AgentCount, &p.Summary, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("store: scan phase: %w", err)
		}
		p.Status = mission.PhaseStatus(status)
		if startedAt.Valid {
			p.StartedAt, _ = time.Parse(time.RFC3339, startedAt.String)
		}
		if completedAt.Valid {
			p.CompletedAt, _ = time.Parse(time.RFC3339, completedAt.String)
		}
		phases = append(phases, p)
	}
	return phases, rows.Err()
}

// ListMissions returns missions for a project (or all projects when
// projectID is empty), newest first, for GET /missions.
func (s *MissionStore) ListMissions(ctx context.Context, projectID string) ([]*mission.Def, error) {
	query := `SELECT mission_id FROM mission_runs`
	args := []interface{}{}
	if projectID != "" {
		query += ` WHERE project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.db.QueryContext(ctx, s.db.placeholder(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: list missions: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: scan mission id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	missions := make([]*mission.Def, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMission(ctx, id)
		if err != nil {
			return nil, err
		}
		missions = append(missions, m)
	}
	return missions, nil
}

// UpdateStatus transitions a mission's status without rewriting its phases,
// for pause/resume/cancel handlers that only need to flip one column.
func (s *MissionStore) UpdateStatus(ctx context.Context, id string, status mission.Status) error {
	_, err := s.db.db.ExecContext(ctx, s.db.placeholder(`
		UPDATE mission_runs SET status = ?, updated_at = ? WHERE mission_id = ?`),
		string(status), nowISO(), id)
	if err != nil {
		return fmt.Errorf("store: update mission status: %w", err)
	}
	return nil
}
