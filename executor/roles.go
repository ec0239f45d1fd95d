package executor

import (
	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/tool"
)

// universalTools are introspection tools every role bucket gets,
// regardless of its allowlist (spec §4.4 step 2).
var universalTools = []string{"platform_agents", "platform_missions", "memory_search", "memory_store"}

// bucketAllowlist maps each role bucket to the tool names it may call.
// dev/qa/devops get the widest file+subprocess surface; product/ux/cdp
// get read-only introspection plus deep_search.
var bucketAllowlist = map[agent.RoleBucket][]string{
	agent.RoleDev:          {"list_files", "code_read", "code_write", "code_edit", "build", "git_commit", "deep_search"},
	agent.RoleQA:           {"list_files", "code_read", "build", "screenshot", "deep_search"},
	agent.RoleDevOps:       {"list_files", "code_read", "code_write", "build", "git_commit", "deep_search"},
	agent.RoleSecurity:     {"list_files", "code_read", "build", "deep_search"},
	agent.RoleArchitecture: {"list_files", "code_read", "deep_search"},
	agent.RoleUX:           {"list_files", "code_read", "screenshot", "deep_search"},
	agent.RoleProduct:      {"list_files", "deep_search"},
	agent.RoleCDP:          {"list_files", "deep_search"},
}

// ToolPredicate builds the Predicate for def's role bucket: the
// intersection of the global catalog with that bucket's allowlist plus
// the universal introspection tools (spec §4.4 step 2).
func ToolPredicate(def agent.Def) tool.Predicate {
	return tool.Allow(bucketAllowlist[def.ClassifyRole()], universalTools)
}
