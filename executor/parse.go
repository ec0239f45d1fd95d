package executor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/conductorhq/conductor/llms"
)

// rawTokenPatterns strips provider-internal markers that sometimes leak
// into content instead of being cleanly separated into tool_calls/
// thinking fields (spec §4.4 step 5): MiniMax's section markers and
// stray <think>/<invoke> blocks some providers echo back verbatim.
var rawTokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<\|tool_calls_section_begin\|>.*?<\|tool_calls_section_end\|>`),
	regexp.MustCompile(`(?s)<think>.*?</think>`),
	regexp.MustCompile(`(?s)<invoke[^>]*>.*?</invoke>`),
}

// StripRawProviderTokens removes leaked provider-internal markers from
// final agent text before it's returned to the caller.
func StripRawProviderTokens(content string) string {
	for _, re := range rawTokenPatterns {
		content = re.ReplaceAllString(content, "")
	}
	return strings.TrimSpace(content)
}

var invokeTagRe = regexp.MustCompile(`(?s)<invoke\s+name="([^"]+)"\s*>(.*?)</invoke>`)
var paramTagRe = regexp.MustCompile(`(?s)<parameter\s+name="([^"]+)"\s*>(.*?)</parameter>`)

// LiftXMLToolCalls parses `<invoke name="...">...<parameter name="...">
// value</parameter>...</invoke>` blocks some providers emit inline in
// content instead of structured tool_calls, and lifts them to the same
// llms.ToolCall shape a well-behaved provider returns natively (spec
// §4.4 step 4).
func LiftXMLToolCalls(content string) []llms.ToolCall {
	matches := invokeTagRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	var calls []llms.ToolCall
	for i, m := range matches {
		name := m[1]
		body := m[2]
		args := make(map[string]interface{})
		for _, p := range paramTagRe.FindAllStringSubmatch(body, -1) {
			args[p[1]] = strings.TrimSpace(p[2])
		}
		calls = append(calls, llms.ToolCall{
			ID:        "xml-invoke-" + strconv.Itoa(i),
			Name:      name,
			Arguments: args,
		})
	}
	return calls
}

var delegateLineRe = regexp.MustCompile(`(?m)^\s*\[DELEGATE:([^\]]+)\]\s*(.+)$`)

// ParseDelegations extracts every `[DELEGATE:agent_id] task` line from
// the agent's final content (spec §4.4 step 5).
func ParseDelegations(content string) []Delegation {
	matches := delegateLineRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	delegations := make([]Delegation, 0, len(matches))
	for _, m := range matches {
		delegations = append(delegations, Delegation{
			AgentID: strings.TrimSpace(m[1]),
			Task:    strings.TrimSpace(m[2]),
		})
	}
	return delegations
}
