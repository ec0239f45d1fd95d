package guard

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/llms"
)

// l0Pattern is one weighted regex family the deterministic check scans
// for. Families mirror the original quality-gate's REJECT/WARNING tables,
// adapted from code-review patterns to agent-output patterns per the
// runtime's own families (slop/mock/hallucination/lie/echo/repetition).
type l0Pattern struct {
	re     *regexp.Regexp
	points int
	label  string
}

var slopPatterns = []l0Pattern{
	{regexp.MustCompile(`(?i)lorem ipsum`), 3, "slop: lorem ipsum placeholder"},
	{regexp.MustCompile(`(?i)\bfoo\b.*\bbar\b.*\bbaz\b`), 2, "slop: foo/bar/baz placeholder names"},
	{regexp.MustCompile(`(?i)\bTBD\b`), 1, "slop: TBD"},
	{regexp.MustCompile(`\bXXX\b`), 1, "slop: XXX"},
}

var mockPatterns = []l0Pattern{
	{regexp.MustCompile(`(?i)TODO:?\s*implement`), 3, "mock: TODO: implement left in place"},
	// RE2 has no lookahead: a "#" comment after NotImplementedError on the
	// same line (e.g. "# pragma: no cover") exempts the match.
	{regexp.MustCompile(`(?im)NotImplementedError[^#\n]*$`), 3, "mock: NotImplementedError without pragma"},
	{regexp.MustCompile(`(?m)^\s*(func|def)\s+\w+\([^)]*\)[^{]*\{\s*\}\s*$`), 2, "mock: empty function body"},
	{regexp.MustCompile(`(?i)console\.log\(\s*['"]test['"]\s*\)`), 2, "mock: console.log('test') stub"},
}

// repetitionMax is how many times one line may repeat before the
// repetition check penalizes it.
const repetitionMax = 3

// lengthFloors is the per-role-bucket minimum character count for agent
// text output, waived when the turn used a write tool (code_write/code_edit).
// Keyed by agent.RoleBucket rather than a raw role string, since real
// config roles ("developer", "architect", ...) never match an exact
// "dev"/"arch" key.
var lengthFloors = map[agent.RoleBucket]int{
	agent.RoleDev:          200,
	agent.RoleQA:           150,
	agent.RoleDevOps:       150,
	agent.RoleArchitecture: 200,
}

const defaultLengthFloor = 80

// L0Result is the outcome of the deterministic pass.
type L0Result struct {
	Score   int
	Reject  bool
	Reasons []string
}

// CheckL0 runs the deterministic regex-family scan described in the
// runtime's quality gate: slop, mock, hallucination, lie, length floor,
// echo, and repetition, each contributing a weighted penalty. A total
// score >= 5 rejects.
//
// usedWriteTools lets the hallucination/lie/length-floor checks see what
// the agent's turn actually did versus what its text claims it did;
// historyQuoted feeds the echo check.
func CheckL0(text, role string, usedWriteTools bool, historyQuoted []string) L0Result {
	if strings.TrimSpace(text) == "" {
		return L0Result{Score: 10, Reject: true, Reasons: []string{"Empty output"}}
	}

	var result L0Result

	scan := func(patterns []l0Pattern) {
		for _, p := range patterns {
			if m := p.re.FindAllString(text, -1); len(m) > 0 {
				result.Score += p.points * len(m)
				result.Reasons = append(result.Reasons, fmt.Sprintf("%s (%dx)", p.label, len(m)))
			}
		}
	}
	scan(slopPatterns)
	scan(mockPatterns)

	if hallucinatesExecution(text) && !usedWriteTools {
		result.Score += 3
		result.Reasons = append(result.Reasons, "hallucination: claims of deploy/test/execute without matching tool evidence")
	}
	if claimsFileCreation(text) && !usedWriteTools {
		result.Score += 3
		result.Reasons = append(result.Reasons, "lie: claims of file creation without a write tool call")
	}

	floor := defaultLengthFloor
	if f, ok := lengthFloors[agent.Def{Role: role}.ClassifyRole()]; ok {
		floor = f
	}
	if !usedWriteTools && len(strings.TrimSpace(text)) < floor {
		result.Score += 2
		result.Reasons = append(result.Reasons, fmt.Sprintf("length floor: output below %d chars for role %q", floor, role))
	}

	if echoRatio(text, historyQuoted) > 0.7 {
		result.Score += 2
		result.Reasons = append(result.Reasons, "echo: more than 70% of output is quoted history")
	}

	if rep, count := mostRepeatedLine(text); rep != "" && count > repetitionMax {
		result.Score += 2
		result.Reasons = append(result.Reasons, fmt.Sprintf("repetition: line repeated %dx", count))
	}

	result.Reject = result.Score >= 5
	return result
}

var executionClaimRe = regexp.MustCompile(`(?i)\bi (?:have |'ve )?(?:deployed|tested|executed|ran)\b`)

func hallucinatesExecution(text string) bool {
	return executionClaimRe.MatchString(text)
}

var fileCreationClaimRe = regexp.MustCompile(`(?i)\bi (?:have |'ve )?(?:created|wrote|added|saved) (?:the |a )?file\b`)

func claimsFileCreation(text string) bool {
	return fileCreationClaimRe.MatchString(text)
}

// echoRatio returns the fraction of text's non-blank lines that also
// appear verbatim in historyQuoted (prior turns the agent is quoting back
// instead of producing new content).
func echoRatio(text string, historyQuoted []string) float64 {
	if len(historyQuoted) == 0 {
		return 0
	}
	quoted := make(map[string]bool, len(historyQuoted))
	for _, l := range historyQuoted {
		quoted[strings.TrimSpace(l)] = true
	}
	lines := strings.Split(text, "\n")
	var total, echoed int
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		total++
		if quoted[l] {
			echoed++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(echoed) / float64(total)
}

func mostRepeatedLine(text string) (string, int) {
	counts := make(map[string]int)
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		counts[l]++
	}
	var best string
	var bestCount int
	for l, c := range counts {
		if c > bestCount {
			best, bestCount = l, c
		}
	}
	return best, bestCount
}

// L1Verdict is the structured response a reviewer model returns.
type L1Verdict struct {
	Score   int      `json:"score"`
	Issues  []string `json:"issues"`
	Verdict string   `json:"verdict"` // APPROVE|REJECT
}

// CheckL1 sends text to the reviewer provider it is given and asks for a
// structured verdict. Its caller in package pattern passes the engine's
// own executor provider, so the reviewer is the same model that produced
// the text. Only called on execution patterns
// (sequential, hierarchical, parallel, loop, aggregator) once L0 has
// passed, since it costs a full LLM round trip.
func CheckL1(ctx context.Context, reviewer llms.Provider, taskDescription, text string) (L1Verdict, error) {
	prompt := fmt.Sprintf(`You are an adversarial reviewer. Evaluate the following agent output against its task.

TASK: %s

OUTPUT:
%s

Respond with strict JSON: {"score": 0-10, "issues": ["..."], "verdict": "APPROVE"|"REJECT"}.
Higher score means more problems. Be skeptical of claims that aren't backed by visible evidence.`, taskDescription, text)

	resp, err := reviewer.Generate(ctx, []llms.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return L1Verdict{}, fmt.Errorf("guard: L1 review call failed: %w", err)
	}

	raw := extractJSON(resp.Content)
	if raw == "" {
		return L1Verdict{}, fmt.Errorf("guard: L1 reviewer returned no JSON verdict")
	}

	var verdict L1Verdict
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return L1Verdict{}, fmt.Errorf("guard: L1 verdict unmarshal: %w", err)
	}
	return verdict, nil
}

// Rejected reports whether v should veto the node per spec: explicit
// REJECT verdict, or score >= 6.
func (v L1Verdict) Rejected() bool {
	return v.Verdict == "REJECT" || v.Score >= 6
}

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

func extractJSON(s string) string {
	return jsonObjectRe.FindString(s)
}
