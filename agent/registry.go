package agent

import (
	"fmt"
	"sync"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/errs"
)

// Registry is the read-mostly store of agent definitions (spec §5 "Shared
// resources": agent definitions are read-mostly; writes go through admin
// APIs that take a write lock on the agent store and invalidate caches).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Def
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Def)}
}

// LoadFromConfig replaces the registry contents from a config snapshot.
func (r *Registry) LoadFromConfig(cfg map[string]config.AgentConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]Def, len(cfg))
	for name, c := range cfg {
		d := FromConfig(c)
		if d.ID == "" {
			d.ID = name
		}
		r.agents[d.ID] = d
	}
}

func (r *Registry) Get(id string) (Def, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.agents[id]
	if !ok {
		return Def{}, errs.New("agent", "Get", fmt.Sprintf("unknown agent id %q", id), errs.ErrNotFound)
	}
	return d, nil
}

// Put inserts or replaces a single agent definition (admin update path);
// this invalidates any per-agent caches held by the executor, which reads
// through the registry on every turn rather than caching Defs itself.
func (r *Registry) Put(d Def) error {
	if d.ID == "" {
		return errs.New("agent", "Put", "id is required", nil)
	}
	if d.HierarchyRank < 0 || d.HierarchyRank > 100 {
		return errs.New("agent", "Put", "hierarchy_rank must be in [0,100]", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[d.ID] = d
	return nil
}

func (r *Registry) List() []Def {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Def, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d)
	}
	return out
}
