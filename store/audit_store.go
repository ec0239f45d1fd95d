package store

import (
	"context"
	"fmt"

	"github.com/conductorhq/conductor/guard"
)

// AuditStore persists guard.AuditEntry records to admin_audit_log, the same
// table the original platform's admin-action trail used (spec §6
// "Persisted state layout"). It implements guard.AuditSink.
type AuditStore struct {
	db *DB
}

func NewAuditStore(db *DB) *AuditStore { return &AuditStore{db: db} }

// WriteAudit never returns an error to the guardrail path (guard.AuditSink's
// contract): a logging fallback is the only reasonable response to a failed
// write here, since surfacing it would risk unblocking a blocked call.
func (s *AuditStore) WriteAudit(ctx context.Context, entry guard.AuditEntry) {
	action := fmt.Sprintf("%s:%s", entry.Action, entry.Label)
	detail := fmt.Sprintf("severity=%s target=%s:%s session=%s args=%s",
		entry.Severity, entry.TargetType, entry.TargetID, entry.SessionID, entry.ArgsPreview)

	query := s.db.placeholder(`INSERT INTO admin_audit_log (actor, action, detail, created_at) VALUES (?, ?, ?, ?)`)
	_, _ = s.db.db.ExecContext(ctx, query, entry.ActorID, action, detail, entry.Timestamp.UTC().Format("2006-01-02T15:04:05Z07:00"))
}
