// Package agent holds AgentDef — the identity and configuration of one
// agent — and the role-classification helpers the executor and pattern
// engine use to decide tool access and protocol suffixes.
package agent

import (
	"strings"

	"github.com/conductorhq/conductor/config"
)

// Def is the identity and configuration of one agent (spec §3 AgentDef).
// It is immutable during a pattern run; updates to the backing config
// trigger cache invalidation in the Registry.
type Def struct {
	ID            string
	Name          string
	Role          string
	HierarchyRank int
	SystemPrompt  string
	Persona       string
	Description   string
	Skills        []string
	Permissions   Permissions
	Provider      string
	Model         string
	Temperature   float64
	MaxTokens     int
	Avatar        string
	Tagline       string
}

type Permissions struct {
	CanDelegate bool
	CanVeto     bool
	CanApprove  bool
}

// FromConfig converts a config.AgentConfig into a runtime Def.
func FromConfig(c config.AgentConfig) Def {
	return Def{
		ID:            c.ID,
		Name:          c.Name,
		Role:          c.Role,
		HierarchyRank: c.HierarchyRank,
		SystemPrompt:  c.SystemPrompt,
		Persona:       c.Persona,
		Description:   c.Description,
		Skills:        c.Skills,
		Permissions: Permissions{
			CanDelegate: c.Permissions.CanDelegate,
			CanVeto:     c.Permissions.CanVeto,
			CanApprove:  c.Permissions.CanApprove,
		},
		Provider:    c.Provider,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
		Avatar:      c.Avatar,
		Tagline:     c.Tagline,
	}
}

// RoleBucket is one of the eight role buckets the executor uses to build a
// tool allowlist (spec §4.4 step 2).
type RoleBucket string

const (
	RoleProduct      RoleBucket = "product"
	RoleArchitecture RoleBucket = "architecture"
	RoleUX           RoleBucket = "ux"
	RoleDev          RoleBucket = "dev"
	RoleQA           RoleBucket = "qa"
	RoleDevOps       RoleBucket = "devops"
	RoleSecurity     RoleBucket = "security"
	RoleCDP          RoleBucket = "cdp"
)

// ClassifyRole buckets an agent by substring match on role+name, the way
// the original tool_schemas._classify_agent_role does.
func (d Def) ClassifyRole() RoleBucket {
	s := strings.ToLower(d.Role + " " + d.Name)
	switch {
	case strings.Contains(s, "security") || strings.Contains(s, "secu"):
		return RoleSecurity
	case strings.Contains(s, "devops") || strings.Contains(s, "sre"):
		return RoleDevOps
	case strings.Contains(s, "qa") || strings.Contains(s, "test"):
		return RoleQA
	case strings.Contains(s, "dev"):
		return RoleDev
	case strings.Contains(s, "ux") || strings.Contains(s, "design"):
		return RoleUX
	case strings.Contains(s, "arch"):
		return RoleArchitecture
	case strings.Contains(s, "cdp") || strings.Contains(s, "chief"):
		return RoleCDP
	case strings.Contains(s, "product") || strings.Contains(s, "cpo"):
		return RoleProduct
	default:
		return RoleDev
	}
}

// IsDevRole reports whether tools should be enabled for this agent inside
// a pattern node (spec §4.5 step 2): rank >= 40, or role matches
// dev/qa/test/devops/sre/security.
func (d Def) IsDevRole() bool {
	if d.HierarchyRank >= 40 {
		return true
	}
	switch d.ClassifyRole() {
	case RoleDev, RoleQA, RoleDevOps, RoleSecurity:
		return true
	}
	return false
}

// IsManager reports whether this agent is a hierarchical-pattern manager:
// role contains "lead" or rank <= 20.
func (d Def) IsManager() bool {
	if d.HierarchyRank <= 20 {
		return true
	}
	return strings.Contains(strings.ToLower(d.Role), "lead")
}

// IsWorker reports whether this agent is a hierarchical-pattern worker:
// dev role or rank >= 40.
func (d Def) IsWorker() bool {
	return d.ClassifyRole() == RoleDev || d.HierarchyRank >= 40
}

// IsQA reports whether this agent is a hierarchical-pattern QA validator.
func (d Def) IsQA() bool {
	s := strings.ToLower(d.Role)
	return strings.Contains(s, "qa") || strings.Contains(s, "test")
}
