// Package tool defines the callable-tool interface agents invoke through
// the Agent Runtime's tool-calling loop, its registry, and the handful
// of built-in tools the runtime handles inline.
package tool

import (
	"context"
)

// Tool is one capability an agent can invoke by name. Execute returns the
// tool's result rendered as a string — the wire shape every LLM provider's
// tool-result message expects — never a structured value, since the
// runtime appends it straight back into conversation history.
type Tool interface {
	Name() string
	Description() string

	// Schema returns the JSON Schema for this tool's parameters, in the
	// shape OpenAI function-calling and the other providers all expect
	// under "parameters". Nil means the tool takes no arguments.
	Schema() map[string]interface{}

	Execute(ctx context.Context, args map[string]interface{}) (string, error)
}

// Definition is the wire-level description of a tool, independent of its
// Go implementation — what the LLM actually sees.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

func definitionOf(t Tool) Definition {
	return Definition{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters:  t.Schema(),
	}
}

// Predicate filters tools, e.g. a role-bucket allowlist (spec §4.4 step 2).
type Predicate func(Tool) bool

// Allow builds a Predicate from an explicit name allowlist, plus a set
// of universal names (introspection tools) always included regardless
// of the bucket.
func Allow(names, universal []string) Predicate {
	set := make(map[string]struct{}, len(names)+len(universal))
	for _, n := range names {
		set[n] = struct{}{}
	}
	for _, n := range universal {
		set[n] = struct{}{}
	}
	return func(t Tool) bool {
		_, ok := set[t.Name()]
		return ok
	}
}
