package store

import (
	"context"
	"log/slog"

	"github.com/conductorhq/conductor/mission"
)

// FeedbackStore implements mission.Feedback: it reacts to deploy and TMA
// lifecycle events by logging them and, for a resolved TMA incident,
// closing out the platform_incidents row (spec §4.6 "feedback triggers").
// Full DORA/analytics and TMA ticket integrations are out of scope (spec
// Non-goals); this is the narrow local bookkeeping that scope leaves room
// for.
type FeedbackStore struct {
	db  *DB
	log *slog.Logger
}

func NewFeedbackStore(db *DB, log *slog.Logger) *FeedbackStore {
	if log == nil {
		log = slog.Default()
	}
	return &FeedbackStore{db: db, log: log}
}

func (f *FeedbackStore) OnDeployCompleted(ctx context.Context, m *mission.Def) {
	f.log.Info("deploy completed", "mission_id", m.ID, "project_id", m.ProjectID)
}

func (f *FeedbackStore) OnDeployFailed(ctx context.Context, m *mission.Def, reason string) {
	f.log.Warn("deploy failed", "mission_id", m.ID, "project_id", m.ProjectID, "reason", reason)
}

func (f *FeedbackStore) OnTMAIncidentFixed(ctx context.Context, incidentKey string) {
	query := f.db.placeholder(`UPDATE platform_incidents SET status = 'resolved', resolved_at = ? WHERE incident_key = ? AND status != 'resolved'`)
	if _, err := f.db.db.ExecContext(ctx, query, nowISO(), incidentKey); err != nil {
		f.log.Error("mark incident resolved", "incident_key", incidentKey, "error", err)
		return
	}
	f.log.Info("tma incident resolved", "incident_key", incidentKey)
}
