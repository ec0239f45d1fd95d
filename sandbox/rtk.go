package sandbox

import (
	"os/exec"
	"regexp"
	"strings"

	"github.com/conductorhq/conductor/config"
)

// rtkRule rewrites a recognized command prefix into its RTK-proxied
// equivalent; RTK compresses stdout (git diffs, grep hits, test output)
// before it ever reaches the agent's context window.
type rtkRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var rtkRules = []rtkRule{
	{regexp.MustCompile(`^git\s+(status|diff|log|push|pull|add|commit|show)\b(.*)$`), "rtk git $1$2"},
	{regexp.MustCompile(`^(grep|rg)\s+(.*)$`), "rtk grep $2"},
	{regexp.MustCompile(`^ls(\s+.+)?$`), "rtk ls$1"},
	{regexp.MustCompile(`^cat\s+(.+)$`), "rtk read $1"},
	{regexp.MustCompile(`^(head|tail)\s+(.+)$`), "rtk read $2"},
	{regexp.MustCompile(`^docker\s+logs\b(.*)$`), "rtk docker logs$1"},
	{regexp.MustCompile(`^docker\s+(ps|images)\b(.*)$`), "rtk docker $1$2"},
	{regexp.MustCompile(`^(python3?\s+-m\s+)?pytest\b(.*)$`), "rtk pytest$2"},
	{regexp.MustCompile(`^cargo\s+(test|check|build|clippy)\b(.*)$`), "rtk cargo $1$2"},
	{regexp.MustCompile(`^go\s+(test|build|vet)\b(.*)$`), "rtk go $1$2"},
	{regexp.MustCompile(`^npm\s+(test|run)\b(.*)$`), "rtk npm $1$2"},
	{regexp.MustCompile(`^npx\s+playwright\b(.*)$`), "rtk playwright$1"},
	{regexp.MustCompile(`^curl\b(.*)$`), "rtk curl$1"},
	{regexp.MustCompile(`^gh\s+(pr|issue|run|repo)\b(.*)$`), "rtk gh $1$2"},
}

// rtkPath resolves the RTK binary: explicit config path wins, otherwise
// PATH lookup. RTK is auto-detected, not required.
func rtkPath(cfg config.SandboxConfig) string {
	if cfg.RTKPath != "" {
		return cfg.RTKPath
	}
	if path, err := exec.LookPath("rtk"); err == nil {
		return path
	}
	return ""
}

// rtkRewrite rewrites command to its RTK-proxied form if RTK is enabled,
// a binary is resolvable, and a rule matches. Returns the command
// unchanged (and false) otherwise.
func rtkRewrite(command string, cfg config.SandboxConfig) (string, bool) {
	if !cfg.RTKEnabled {
		return command, false
	}
	path := rtkPath(cfg)
	if path == "" {
		return command, false
	}
	trimmed := strings.TrimSpace(command)
	for _, rule := range rtkRules {
		if rule.pattern.MatchString(trimmed) {
			rewritten := rule.pattern.ReplaceAllString(trimmed, rule.replacement)
			if strings.HasPrefix(rewritten, "rtk ") {
				rewritten = path + " " + rewritten[len("rtk "):]
			}
			return rewritten, true
		}
	}
	return command, false
}
