// Package sandbox executes agent tool commands in an isolated subprocess,
// either directly on the host (process-group isolated, SIGKILL on timeout)
// or inside a throwaway Docker container. It is the one place in the
// runtime that shells out on an agent's behalf.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/errs"
)

// Result is what a sandboxed command produced.
type Result struct {
	Stdout     string
	Stderr     string
	ExitCode   int
	Sandboxed  bool // true if it ran inside Docker
	Image      string
	Duration   time.Duration
	Killed     bool // true if the timeout fired
	RTKProxied bool
}

const (
	maxStdoutBytes = 5000
	maxStderrBytes = 3000
)

// Executor runs commands for one workspace root.
type Executor struct {
	workspace string
	cfg       config.SandboxConfig
	log       *slog.Logger
}

func New(workspace string, cfg config.SandboxConfig, log *slog.Logger) *Executor {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		abs = workspace
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{workspace: abs, cfg: cfg, log: log}
}

// RunOpts customizes one invocation.
type RunOpts struct {
	Cwd     string
	Timeout time.Duration
	Image   string // Docker-mode only; auto-detected if empty
	Env     map[string]string
	AgentID string // used to derive a stable per-agent Docker UID
}

// Run executes command, in Docker if the sandbox is Docker-enabled,
// otherwise as a direct, process-group-isolated subprocess.
func (e *Executor) Run(ctx context.Context, command string, opts RunOpts) (Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(e.cfg.DefaultTimeout) * time.Second
	}
	start := time.Now()

	var result Result
	var err error
	if e.cfg.DockerEnabled {
		result, err = e.runDocker(ctx, command, opts)
		if err != nil {
			return result, err
		}
	} else {
		result, err = e.runDirect(ctx, command, opts)
		if err != nil {
			return result, err
		}
	}
	result.Duration = time.Since(start)
	return result, nil
}

// runDirect runs the command in its own process group so that a timeout
// kill reaches every descendant it spawned, not just the shell.
func (e *Executor) runDirect(ctx context.Context, command string, opts RunOpts) (Result, error) {
	rewritten, proxied := rtkRewrite(command, e.cfg)

	execCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", rewritten)
	cmd.Dir = cwdOrDefault(opts.Cwd, e.workspace)
	cmd.Env = buildEnv(opts.Env)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error { return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) }

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		killProcessGroup(cmd, e.log)
		return Result{
			Stderr:   fmt.Sprintf("timeout after %ds", int(opts.Timeout.Seconds())),
			ExitCode: -1,
			Killed:   true,
		}, nil
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, errs.New("sandbox", "runDirect", "failed to execute command", runErr)
		}
	}

	return Result{
		Stdout:     tail(stdout.String(), maxStdoutBytes),
		Stderr:     tail(stderr.String(), maxStderrBytes),
		ExitCode:   exitCode,
		RTKProxied: proxied,
	}, nil
}

// killProcessGroup SIGTERMs the group, polls briefly for exit, then
// SIGKILLs anything still alive. A single signal can be lost if a child
// is mid-syscall, so this verifies before giving up.
func killProcessGroup(cmd *exec.Cmd, log *slog.Logger) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return
	}
	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if err := syscall.Kill(-pgid, 0); err != nil {
			return // group is gone
		}
		time.Sleep(100 * time.Millisecond)
	}

	if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
		log.Warn("sandbox: SIGKILL of process group failed", "pgid", pgid, "error", err)
	}
}

func cwdOrDefault(cwd, fallback string) string {
	if cwd != "" {
		return cwd
	}
	return fallback
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// uidForAgent derives a stable, low-collision UID in [10000, 60000) for
// per-agent Docker isolation, the way the original hashes agent_id.
func uidForAgent(agentID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(agentID))
	return 10000 + int(h.Sum32()%50000)
}
