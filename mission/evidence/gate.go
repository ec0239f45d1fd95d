// Package evidence runs a phase's acceptance criteria as deterministic
// filesystem/command checks (spec §3 EvidenceCriterion, §4.6 "Evidence
// Gate"). Each criterion is a colon-separated directive string, e.g.
// "file_exists:go.mod", "file_count_min:3:internal/foo/*.go", "no_fake_files",
// "command_ok:go vet ./...".
package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// CommandRunner is the flat (command, cwd, timeout) projection of
// sandbox.Executor.Run that the command_ok check depends on.
type CommandRunner interface {
	Run(ctx context.Context, command string, cwd string, timeout time.Duration) (string, error)
}

// Checker evaluates a phase's acceptance criteria against its workspace.
type Checker struct {
	Runner CommandRunner
}

func New(runner CommandRunner) *Checker {
	return &Checker{Runner: runner}
}

// Check runs every criterion and returns whether they all passed, plus a
// human-readable report of each criterion's result (spec §4.6 "emit
// evidence_gate event").
func (c *Checker) Check(ctx context.Context, workspacePath string, criteria []string) (bool, string) {
	allPassed := true
	var lines []string
	for _, criterion := range criteria {
		passed, detail := c.checkOne(ctx, workspacePath, criterion)
		status := "PASS"
		if !passed {
			status = "FAIL"
			allPassed = false
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", status, criterion, detail))
	}
	return allPassed, strings.Join(lines, "\n")
}

func (c *Checker) checkOne(ctx context.Context, workspacePath, criterion string) (bool, string) {
	parts := strings.Split(criterion, ":")
	kind := parts[0]
	args := parts[1:]

	switch kind {
	case "file_exists":
		if len(args) == 0 {
			return false, "missing path argument"
		}
		return fileExists(filepath.Join(workspacePath, args[0]))
	case "dir_exists":
		if len(args) == 0 {
			return false, "missing path argument"
		}
		return dirExists(filepath.Join(workspacePath, args[0]))
	case "file_count_min", "file_count_max":
		if len(args) < 2 {
			return false, "missing count/glob arguments"
		}
		return c.checkFileCount(workspacePath, kind, args[0], args[1])
	case "no_fake_files":
		return c.checkNoFakeFiles(workspacePath)
	case "command_ok":
		if c.Runner == nil || len(args) == 0 {
			return false, "no command runner configured"
		}
		command := strings.Join(args, ":")
		out, err := c.Runner.Run(ctx, command, workspacePath, 60*time.Second)
		if err != nil {
			return false, "command failed: " + err.Error()
		}
		return true, out
	default:
		return false, "unknown check kind: " + kind
	}
}

func fileExists(path string) (bool, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err.Error()
	}
	if info.IsDir() {
		return false, path + " is a directory, not a file"
	}
	return true, path + " exists"
}

func dirExists(path string) (bool, string) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err.Error()
	}
	if !info.IsDir() {
		return false, path + " is a file, not a directory"
	}
	return true, path + " exists"
}

func (c *Checker) checkFileCount(workspacePath, kind, countStr, pattern string) (bool, string) {
	n, err := strconv.Atoi(countStr)
	if err != nil {
		return false, "invalid count: " + countStr
	}
	matches, err := filepath.Glob(filepath.Join(workspacePath, pattern))
	if err != nil {
		return false, "invalid glob: " + err.Error()
	}
	count := len(matches)
	if kind == "file_count_min" {
		if count >= n {
			return true, fmt.Sprintf("%d files matched (>= %d)", count, n)
		}
		return false, fmt.Sprintf("%d files matched (< %d)", count, n)
	}
	if count <= n {
		return true, fmt.Sprintf("%d files matched (<= %d)", count, n)
	}
	return false, fmt.Sprintf("%d files matched (> %d)", count, n)
}

// fakeFileMarkers flags placeholder content a dev agent sometimes leaves
// behind instead of a real implementation.
var fakeFileMarkers = []string{"TODO: implement", "not implemented", "placeholder", "FIXME: stub"}

func (c *Checker) checkNoFakeFiles(workspacePath string) (bool, string) {
	var offenders []string
	_ = filepath.Walk(workspacePath, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if info.Size() > 200_000 {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		lower := strings.ToLower(string(content))
		for _, marker := range fakeFileMarkers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				rel, _ := filepath.Rel(workspacePath, path)
				offenders = append(offenders, rel)
				break
			}
		}
		return nil
	})
	if len(offenders) == 0 {
		return true, "no placeholder markers found"
	}
	return false, "placeholder markers found in: " + strings.Join(offenders, ", ")
}
