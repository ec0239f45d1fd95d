package store

import (
	"context"
	"fmt"
)

// MemoryStore implements the project-memory Store/Search shape shared by
// mission.Memory and pattern.Memory (spec §6 "Memory Manager":
// project_store/project_get/project_search) over the memory_project table.
type MemoryStore struct {
	db *DB
}

func NewMemoryStore(db *DB) *MemoryStore { return &MemoryStore{db: db} }

// Store appends a project-memory entry keyed by key (spec's
// "project_store(project_id, key, value, category, source) — append or
// replace by key" — this module always appends, so an earlier row with the
// same key is not replaced; Search looks up by category and recency, not
// by key).
func (s *MemoryStore) Store(ctx context.Context, projectID, key, value string) error {
	return s.StoreCategory(ctx, projectID, key, value, "decisions")
}

// StoreCategory is the full project_store signature; Store defaults
// category to "decisions" for collaborators that don't carry a category
// concept of their own (pattern and the backlog call StoreCategory when
// their Memory has it).
func (s *MemoryStore) StoreCategory(ctx context.Context, projectID, key, value, category string) error {
	query := s.db.placeholder(`INSERT INTO memory_project (project_id, key, value, category, source, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.db.ExecContext(ctx, query, projectID, key, value, category, key, nowISO())
	if err != nil {
		return fmt.Errorf("store: project memory store: %w", err)
	}
	return nil
}

// Search returns the most recent matching values for a project, optionally
// filtered by category (spec's "project_search(project_id, query, limit)" —
// simplified to a category+recency lookup since full-text search is out of
// scope for this module; category itself doubles as the query dimension the
// rest of the codebase actually needs, e.g. backlog.Top's category="product").
func (s *MemoryStore) Search(ctx context.Context, projectID, category string, limit int) ([]string, error) {
	var query string
	var args []any
	if category == "" {
		query = `SELECT value FROM memory_project WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{projectID, limit}
	} else {
		query = `SELECT value FROM memory_project WHERE project_id = ? AND category = ? ORDER BY created_at DESC LIMIT ?`
		args = []any{projectID, category, limit}
	}

	rows, err := s.db.db.QueryContext(ctx, s.db.placeholder(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: project memory search: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}
