package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/conductorhq/conductor/errs"
)

// imageMap auto-selects a Docker image by the command's leading tool.
var imageMap = map[string]string{
	"python": "python:3.12-slim", "python3": "python:3.12-slim",
	"node": "node:20-slim", "npm": "node:20-slim", "npx": "node:20-slim",
	"cargo": "rust:1.83-slim", "rustc": "rust:1.83-slim",
	"go":     "golang:1.23-alpine",
	"swift":  "swift:6.0",
	"gradle": "gradle:8.5-jdk21",
	"mvn":    "maven:3.9-eclipse-temurin-21",
	"dotnet": "mcr.microsoft.com/dotnet/sdk:9.0",
}

func detectImage(command, fallback string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fallback
	}
	if img, ok := imageMap[fields[0]]; ok {
		return img
	}
	for tool, img := range imageMap {
		if strings.Contains(command, tool) {
			return img
		}
	}
	return fallback
}

// runDocker executes command inside a throwaway container, isolated from
// the host filesystem and (by default) the network.
func (e *Executor) runDocker(ctx context.Context, command string, opts RunOpts) (Result, error) {
	image := opts.Image
	if image == "" {
		image = detectImage(command, e.cfg.Image)
	}
	workdir := cwdOrDefault(opts.Cwd, e.workspace)

	args := []string{
		"run", "--rm",
		"--network", e.cfg.Network,
		"--memory", e.cfg.Memory,
		"--cpus", strconv.Itoa(e.cfg.CPUs),
		"--tmpfs", "/tmp:rw,nosuid,size=200m",
	}

	if e.cfg.WorkspaceVolume != "" {
		args = append(args, "-v", e.cfg.WorkspaceVolume+":/workspace", "-w", "/workspace")
	} else {
		rel, err := filepath.Rel(e.workspace, workdir)
		if err != nil || rel == "." {
			args = append(args, "-v", e.workspace+":/workspace", "-w", "/workspace")
		} else {
			args = append(args, "-v", e.workspace+":/workspace", "-w", "/workspace/"+rel)
		}
	}

	if opts.AgentID != "" {
		args = append(args, "--user", strconv.Itoa(uidForAgent(opts.AgentID)))
	}
	for k, v := range opts.Env {
		args = append(args, "-e", k+"="+v)
	}
	args = append(args, image, "sh", "-c", command)

	execCtx, cancel := context.WithTimeout(ctx, opts.Timeout+10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.log.Info("sandbox: docker run", "image", image, "command", truncate(command, 100))
	runErr := cmd.Run()

	if execCtx.Err() == context.DeadlineExceeded {
		return Result{
			Stderr:    fmt.Sprintf("[SANDBOX] TIMEOUT (%s) — image: %s", opts.Timeout, image),
			ExitCode:  -1,
			Sandboxed: true,
			Image:     image,
			Killed:    true,
		}, nil
	}
	if isDockerMissing(runErr) {
		e.log.Warn("sandbox: docker binary not found, falling back to direct execution")
		return e.runDirect(ctx, command, opts)
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, errs.New("sandbox", "runDocker", "failed to run container", runErr)
		}
	}

	return Result{
		Stdout:    tail(stdout.String(), maxStdoutBytes),
		Stderr:    tail(stderr.String(), maxStderrBytes),
		ExitCode:  exitCode,
		Sandboxed: true,
		Image:     image,
	}, nil
}

func isDockerMissing(err error) bool {
	var pathErr *exec.Error
	return err != nil && errors.As(err, &pathErr) && pathErr.Err == exec.ErrNotFound
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
