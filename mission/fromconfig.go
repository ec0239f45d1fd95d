package mission

import (
	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/pattern"
)

// WorkflowFromConfig converts a config.WorkflowConfig into the runtime
// Workflow the orchestrator drives a mission against.
func WorkflowFromConfig(c config.WorkflowConfig) Workflow {
	phases := make([]WorkflowPhase, len(c.Phases))
	for i, p := range c.Phases {
		phases[i] = WorkflowPhase{
			PhaseID:   p.PhaseID,
			Name:      p.Name,
			PatternID: p.PatternID,
			Config: WorkflowPhaseConfig{
				AgentIDs:           p.Config.AgentIDs,
				Leader:             p.Config.Leader,
				Gate:               p.Config.Gate,
				MaxIterations:      p.Config.MaxIterations,
				AcceptanceCriteria: p.Config.AcceptanceCriteria,
			},
		}
	}
	return Workflow{ID: c.ID, Name: c.Name, Phases: phases}
}

// NewMission creates a mission's Phase slice from a workflow template,
// every phase starting PENDING (spec §3 "phases.length ==
// workflow.phases.length at creation").
func NewMission(id, projectID, name, brief, workflowID string, wf Workflow) *Def {
	phases := make([]Phase, len(wf.Phases))
	for i, p := range wf.Phases {
		phases[i] = Phase{PhaseID: p.PhaseID, Status: PhasePending}
	}
	return &Def{
		ID:         id,
		ProjectID:  projectID,
		Name:       name,
		Brief:      brief,
		Status:     StatusPending,
		WorkflowID: workflowID,
		Phases:     phases,
	}
}

// patternTypeFromConfig adapts a config.Config's Patterns map into a
// PatternTypeResolver.
type patternTypeFromConfig struct {
	patterns map[string]config.PatternConfig
}

// NewPatternTypeResolver builds a PatternTypeResolver backed by the
// loaded config's named pattern definitions.
func NewPatternTypeResolver(patterns map[string]config.PatternConfig) PatternTypeResolver {
	return patternTypeFromConfig{patterns: patterns}
}

func (r patternTypeFromConfig) PatternType(patternID string) (pattern.Type, bool) {
	p, ok := r.patterns[patternID]
	if !ok {
		return "", false
	}
	return pattern.Type(p.Type), true
}
