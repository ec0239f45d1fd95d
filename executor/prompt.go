package executor

import (
	"fmt"
	"strings"

	"github.com/conductorhq/conductor/agent"
)

const (
	skillBudget       = 1500
	maxSkillsInPrompt = 5
	visionBudget      = 3000
	contextBudget     = 2000
	memoryBudget      = 4000
)

const toolUseDirective = `You have access to tools. Call a tool when you need to read, write, or execute something in the project; otherwise respond in plain text.`

const memoryProtocol = `Before answering, search project memory for prior context with memory_search. After reaching a notable decision, store it with memory_store.`

// BuildSystemPrompt concatenates the agent's persona, identity, tool-use
// directive, memory protocol, skills, vision, project context, project
// memory, project path, and permission notes into one system string
// (spec §4.4 step 1), truncating each section to its budget.
func BuildSystemPrompt(rc RunContext, projectContext string) string {
	var b strings.Builder

	if rc.Agent.SystemPrompt != "" {
		b.WriteString(rc.Agent.SystemPrompt)
		b.WriteString("\n\n")
	}
	if rc.Agent.Persona != "" {
		b.WriteString(rc.Agent.Persona)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "You are %s, role: %s\n\n", rc.Agent.Name, rc.Agent.Role)

	if rc.ToolsEnabled {
		b.WriteString(toolUseDirective)
		b.WriteString("\n\n")
	}

	b.WriteString(memoryProtocol)
	b.WriteString("\n\n")

	if len(rc.Skills) > 0 {
		b.WriteString("Skills:\n")
		n := len(rc.Skills)
		if n > maxSkillsInPrompt {
			n = maxSkillsInPrompt
		}
		for _, s := range rc.Skills[:n] {
			b.WriteString("- ")
			b.WriteString(truncate(s, skillBudget))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if rc.VisionSnippet != "" {
		b.WriteString("Vision:\n")
		b.WriteString(truncate(rc.VisionSnippet, visionBudget))
		b.WriteString("\n\n")
	}

	if projectContext != "" {
		b.WriteString("Project context:\n")
		b.WriteString(truncate(projectContext, contextBudget))
		b.WriteString("\n\n")
	}

	if rc.ProjectMemory != "" {
		b.WriteString("Project memory:\n")
		b.WriteString(truncate(rc.ProjectMemory, memoryBudget))
		b.WriteString("\n\n")
	}

	if rc.ProjectPath != "" {
		fmt.Fprintf(&b, "Project path: %s\n\n", rc.ProjectPath)
	}

	b.WriteString(permissionNotes(rc.Agent.Permissions))

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func permissionNotes(p agent.Permissions) string {
	var notes []string
	if p.CanDelegate {
		notes = append(notes, "You may delegate a task to another agent with a line of the form [DELEGATE:agent_id] task description.")
	}
	if p.CanVeto {
		notes = append(notes, `You may veto the prior output by beginning your response with "[VETO]" followed by the reason.`)
	}
	if p.CanApprove {
		notes = append(notes, `You may approve the prior output by beginning your response with "[APPROVE]".`)
	}
	if len(notes) == 0 {
		return ""
	}
	return strings.Join(notes, "\n") + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
