package mission

import (
	"context"

	"github.com/conductorhq/conductor/pattern"
)

// PatternTypeResolver looks up a named pattern's variant type (spec §3
// WorkflowPhaseDef.pattern_id references a PatternDef by id).
type PatternTypeResolver interface {
	PatternType(patternID string) (pattern.Type, bool)
}

// patternAdapter implements PatternRunner on top of a real pattern.Engine,
// building the run's Def fresh from the phase's agent_ids every call (spec
// §4.6: "build PatternDef from wf_phase.config.agent_ids with edge layout
// from pattern type").
type patternAdapter struct {
	engine *pattern.Engine
	types  PatternTypeResolver
}

// NewPatternRunner adapts a pattern.Engine into the Orchestrator's
// PatternRunner dependency.
func NewPatternRunner(engine *pattern.Engine, types PatternTypeResolver) PatternRunner {
	return &patternAdapter{engine: engine, types: types}
}

func (a *patternAdapter) RunPattern(ctx context.Context, patternID string, agentIDs []string, maxIterations int, task string, nc RunNodeContext) (bool, string) {
	patternType, ok := a.types.PatternType(patternID)
	if !ok {
		patternType = pattern.TypeSequential
	}
	def := pattern.BuildPatternDef(patternType, agentIDs, maxIterations)

	result := a.engine.Run(ctx, def, pattern.NodeContext{
		SessionID:   nc.SessionID,
		ProjectID:   nc.ProjectID,
		ProjectPath: nc.ProjectPath,
		FlowStep:    nc.FlowStep,
		OnEvent:     nc.OnEvent,
	}, task)

	return result.Success, result.Error
}
