package sandbox

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conductorhq/conductor/config"
)

func testConfig() config.SandboxConfig {
	cfg := config.SandboxConfig{}
	cfg.SetDefaults()
	return cfg
}

func TestExecutor_RunDirect_Success(t *testing.T) {
	exec := New(t.TempDir(), testConfig(), slog.Default())

	result, err := exec.Run(context.Background(), "echo hello", RunOpts{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hello\n", result.Stdout)
	assert.False(t, result.Sandboxed)
	assert.False(t, result.Killed)
}

func TestExecutor_RunDirect_NonZeroExit(t *testing.T) {
	exec := New(t.TempDir(), testConfig(), slog.Default())

	result, err := exec.Run(context.Background(), "exit 3", RunOpts{Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 3, result.ExitCode)
}

func TestExecutor_RunDirect_Timeout(t *testing.T) {
	exec := New(t.TempDir(), testConfig(), slog.Default())

	result, err := exec.Run(context.Background(), "sleep 5", RunOpts{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)
	assert.True(t, result.Killed)
	assert.Equal(t, -1, result.ExitCode)
}

func TestDetectImage(t *testing.T) {
	assert.Equal(t, "python:3.12-slim", detectImage("python3 script.py", "default"))
	assert.Equal(t, "golang:1.23-alpine", detectImage("go test ./...", "default"))
	assert.Equal(t, "default", detectImage("echo hi", "default"))
}

func TestUidForAgent_Stable(t *testing.T) {
	a := uidForAgent("agent-1")
	b := uidForAgent("agent-1")
	c := uidForAgent("agent-2")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.GreaterOrEqual(t, a, 10000)
	assert.Less(t, a, 60000)
}

func TestRTKRewrite_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.RTKEnabled = false
	out, proxied := rtkRewrite("git status", cfg)
	assert.Equal(t, "git status", out)
	assert.False(t, proxied)
}

func TestRTKRewrite_NoBinary(t *testing.T) {
	cfg := testConfig()
	cfg.RTKEnabled = true
	cfg.RTKPath = "" // not resolvable unless "rtk" happens to be on PATH
	_, proxied := rtkRewrite("ls -la", cfg)
	if proxied {
		t.Skip("rtk binary present on PATH in this environment")
	}
}

func TestRTKRewrite_MatchesAndRewrites(t *testing.T) {
	cfg := testConfig()
	cfg.RTKEnabled = true
	cfg.RTKPath = "/usr/local/bin/rtk"
	out, proxied := rtkRewrite("git diff --stat", cfg)
	assert.True(t, proxied)
	assert.Equal(t, "/usr/local/bin/rtk git diff --stat", out)
}
