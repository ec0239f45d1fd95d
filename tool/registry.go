package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"

	"github.com/conductorhq/conductor/registry"
)

// Registry is the flat, name-keyed tool registry every agent's executor
// resolves tool calls through (spec §6 "Tool Registry").
type Registry struct {
	base *registry.BaseRegistry[Tool]
	mu   sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Tool]()}
}

func (r *Registry) Register(t Tool) error {
	return r.base.Register(t.Name(), t)
}

func (r *Registry) Get(name string) (Tool, bool) {
	return r.base.Get(name)
}

func (r *Registry) List() []Tool {
	tools := r.base.List()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Filtered returns Definitions for every registered tool that pred
// accepts (the intersection of the global catalog with a role bucket's
// allowlist, spec §4.4 step 2).
func (r *Registry) Filtered(pred Predicate) []Definition {
	var defs []Definition
	for _, t := range r.List() {
		if pred == nil || pred(t) {
			defs = append(defs, definitionOf(t))
		}
	}
	return defs
}

// Execute resolves name and runs it. Unknown tools return the verbatim
// error string the spec names, rather than a Go error, since this is
// meant to be appended straight back into the model's conversation.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	t, ok := r.Get(name)
	if !ok {
		return fmt.Sprintf("Error: unknown tool '%s'", name)
	}
	result, err := t.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return result
}

var schemaReflector = &jsonschema.Reflector{
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

// SchemaFor reflects a Go struct (its JSON tags become parameter names)
// into the map[string]interface{} JSON Schema shape Tool.Schema returns.
// Built-in tools that take typed arguments use this instead of
// hand-writing their schema map.
func SchemaFor(v interface{}) map[string]interface{} {
	s := schemaReflector.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil
	}
	return m
}
