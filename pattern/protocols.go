package pattern

import (
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/agent"
)

// Protocol is a role-protocol suffix appended to a node's task string
// (spec §4.5 step 3): it tells the agent what form its response must
// take so the engine can parse a verdict out of it afterward.
type Protocol string

const (
	ExecProtocol     Protocol = "\n\nYou must use your available tools to implement this; do not just describe the change."
	QAProtocol       Protocol = "\n\nYou must end your response with exactly [APPROVE] or [VETO]."
	ReviewProtocol   Protocol = "\n\nYou must end your response with exactly [APPROVE] or [VETO]."
	ResearchProtocol Protocol = "\n\nThis is a discussion only; do not write or modify any files."
	PRProtocol       Protocol = "\n\nAppend one or more lines of the form \"[PR] title — description\" summarizing what you changed, for traceability."
)

// ProtocolFor chooses a('s) role-protocol suffix (spec §4.5 step 3):
// QA, security and review roles get the approve/veto protocol; dev and
// devops roles get the exec protocol followed by the PR protocol when
// project-scoped, else the research protocol; everyone else gets the
// research protocol.
func ProtocolFor(def agent.Def, projectScoped bool) Protocol {
	switch def.ClassifyRole() {
	case agent.RoleQA, agent.RoleSecurity:
		return QAProtocol
	}
	if strings.Contains(strings.ToLower(def.Role), "review") {
		return ReviewProtocol
	}
	if !projectScoped {
		return ResearchProtocol
	}
	switch def.ClassifyRole() {
	case agent.RoleDev, agent.RoleDevOps:
		return ExecProtocol + Protocol(PRProtocol)
	default:
		return ResearchProtocol
	}
}

// ComposeTask builds the final task string for a node (spec §4.5 step 3):
// team roster block, "[Message from colleague]" if there's inbound
// context, "[Your task]", then the role-protocol suffix.
func ComposeTask(roster []string, contextFrom, task string, protocol Protocol) string {
	var b strings.Builder
	if len(roster) > 0 {
		b.WriteString("Team: " + strings.Join(roster, ", ") + "\n\n")
	}
	if contextFrom != "" {
		b.WriteString("[Message from colleague]\n" + contextFrom + "\n\n")
	}
	b.WriteString("[Your task]\n" + task)
	b.WriteString(string(protocol))
	return b.String()
}

var vetoPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\[VETO\]`),
	regexp.MustCompile(`(?i)STATUT\s*:\s*NOGO`),
	regexp.MustCompile(`(?i)D[EÉ]CISION\s*:\s*NOGO`),
	regexp.MustCompile(`(?im)^\s*NOGO\s*$`),
}

// DetectOutcome classifies a node's final content per spec §4.5 step 5:
// an explicit veto marker means VETOED; an explicit approve marker (or
// neither) means COMPLETED. Markers must be explicit, bracketed, or
// declarative forms only — a stray mention of the word "veto" in prose
// does not count (that's why these are fixed regexes, not a substring
// search).
func DetectOutcome(content string) NodeStatus {
	trimmed := strings.TrimSpace(content)
	if trimmed == "NOGO" {
		return NodeVetoed
	}
	if trimmed == "GO" {
		return NodeCompleted
	}
	for _, re := range vetoPatterns {
		if re.MatchString(content) {
			return NodeVetoed
		}
	}
	return NodeCompleted
}
