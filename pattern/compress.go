package pattern

import (
	"regexp"
	"strings"
)

// ContextBudget bounds the total size of context handed from one node to
// the next (spec §4.5 "Context compression (rot mitigation)").
const ContextBudget = 6000

// decisionMarkerRe matches a line worth preserving verbatim when an
// older entry is compressed: an explicit decision, action, or heading.
var decisionMarkerRe = regexp.MustCompile(`(?i)\b(decision|choix|stack|conclusion|recommand|action|verdict|valide|approve|reject|veto|\[pr\]|architecture|technologie|priorit)\b`)

var listMarkerRe = regexp.MustCompile(`^\s*(-|\*|\d+\.)\s`)
var headingRe = regexp.MustCompile(`^\s*#`)

// Entry is one accumulated node output, stored as "[AgentName]:\n{output}"
// (spec §4.5 "Context compression").
type Entry struct {
	AgentName string
	Output    string
}

func (e Entry) format() string {
	return "[" + e.AgentName + "]:\n" + e.Output
}

// Compress builds the context string handed into the next node from the
// accumulated entries so far. A single entry passes through verbatim
// (truncated to ContextBudget); with more than one, the last entry gets
// half the budget verbatim and the rest is split equally across the
// older, compressed entries.
func Compress(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	if len(entries) == 1 {
		return truncateWithEllipsis(entries[0].format(), ContextBudget)
	}

	last := entries[len(entries)-1]
	older := entries[:len(entries)-1]

	lastBudget := ContextBudget / 2
	remaining := ContextBudget - lastBudget
	perOlder := remaining / len(older)

	var b strings.Builder
	for _, e := range older {
		b.WriteString(compressEntry(e, perOlder))
		b.WriteString("\n\n")
	}
	b.WriteString(truncateWithEllipsis(last.format(), lastBudget))
	return b.String()
}

// compressEntry keeps the first non-empty line, then any line matching a
// decision marker, a list marker, or a heading; everything else is
// discarded. The result is truncated to budget with a trailing "...".
func compressEntry(e Entry, budget int) string {
	lines := strings.Split(e.Output, "\n")
	var kept []string
	keptFirst := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !keptFirst {
			kept = append(kept, trimmed)
			keptFirst = true
			continue
		}
		if decisionMarkerRe.MatchString(trimmed) || listMarkerRe.MatchString(trimmed) || headingRe.MatchString(trimmed) {
			kept = append(kept, trimmed)
		}
	}
	body := "[" + e.AgentName + "]:\n" + strings.Join(kept, "\n")
	return truncateWithEllipsis(body, budget)
}

func truncateWithEllipsis(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if len(s) <= budget {
		return s
	}
	if budget <= 3 {
		return s[:budget]
	}
	return s[:budget-3] + "..."
}
