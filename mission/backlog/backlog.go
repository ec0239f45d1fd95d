// Package backlog models the product backlog entries the mission
// orchestrator folds into a dev phase's sprint task (spec §4.6 "backlog
// items (category=product, limit 5)"). Backlog items live in project
// memory as formatted strings; this package is the one place that knows
// the format, so callers work with structured Items instead of raw text.
package backlog

import (
	"context"
	"fmt"
	"strings"
)

// Priority is a backlog item's relative urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Item is one product backlog entry.
type Item struct {
	Title    string
	Priority Priority
}

// Format renders an Item the way it is stored in project memory:
// "[high] Title".
func (it Item) Format() string {
	return fmt.Sprintf("[%s] %s", it.Priority, it.Title)
}

// Parse recovers an Item from its stored form; an entry with no
// recognized "[priority]" prefix is treated as medium priority.
func Parse(raw string) Item {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		if end := strings.Index(raw, "]"); end > 0 {
			p := Priority(strings.ToLower(strings.TrimSpace(raw[1:end])))
			switch p {
			case PriorityLow, PriorityMedium, PriorityHigh:
				return Item{Title: strings.TrimSpace(raw[end+1:]), Priority: p}
			}
		}
	}
	return Item{Title: raw, Priority: PriorityMedium}
}

// Source is the project-memory collaborator backlog items are stored in
// and read from.
type Source interface {
	Store(ctx context.Context, projectID, key, value string) error
	Search(ctx context.Context, projectID, category string, limit int) ([]string, error)
}

// Add records a new backlog item under the "product" memory category when
// src also has a StoreCategory method (as store.MemoryStore does); any
// other Source receives a plain Store call and picks the category itself.
func Add(ctx context.Context, src Source, projectID string, item Item) error {
	key := "backlog: " + item.Title
	if cs, ok := src.(interface {
		StoreCategory(ctx context.Context, projectID, key, value, category string) error
	}); ok {
		return cs.StoreCategory(ctx, projectID, key, item.Format(), "product")
	}
	return src.Store(ctx, projectID, key, item.Format())
}

// Top returns the limit highest-priority backlog items recorded for
// projectID, high priority first.
func Top(ctx context.Context, src Source, projectID string, limit int) ([]Item, error) {
	raw, err := src.Search(ctx, projectID, "product", limit*3)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		items = append(items, Parse(r))
	}
	sortByPriority(items)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func sortByPriority(items []Item) {
	rank := map[Priority]int{PriorityHigh: 0, PriorityMedium: 1, PriorityLow: 2}
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && rank[items[j].Priority] < rank[items[j-1].Priority]; j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
