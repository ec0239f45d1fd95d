package main

import (
	"context"
	"fmt"
	"time"

	"github.com/conductorhq/conductor/agent"
	"github.com/conductorhq/conductor/llms"
	"github.com/conductorhq/conductor/sandbox"
	"github.com/conductorhq/conductor/server"
)

// agentResolver adapts agent.Registry's error-returning Get into the
// pattern.AgentResolver / mission's bool-returning Resolve shape, mirroring
// the (T, bool) lookup convention the rest of the runtime uses for
// not-found rather than the errs.ErrNotFound convention the registry
// itself follows (it predates pattern's interface and serves admin-API
// callers that want a real error to report).
type agentResolver struct {
	registry *agent.Registry
}

func newAgentResolver(registry *agent.Registry) agentResolver {
	return agentResolver{registry: registry}
}

func (r agentResolver) Resolve(agentID string) (agent.Def, bool) {
	d, err := r.registry.Get(agentID)
	if err != nil {
		return agent.Def{}, false
	}
	return d, true
}

// llmSummarizer implements mission.Summarizer over a plain llms.Provider
// call: one user turn asking for a transcript condensed to maxChars,
// truncated defensively in case the model overshoots (spec §4.6
// "LLM-summarized, 300 chars, 30s cap" / "45s cap" variants — the
// deadline itself is the caller's ctx, not this adapter's concern).
type llmSummarizer struct {
	provider llms.Provider
}

func newLLMSummarizer(provider llms.Provider) llmSummarizer {
	return llmSummarizer{provider: provider}
}

func (s llmSummarizer) Summarize(ctx context.Context, transcript string, maxChars int) (string, error) {
	prompt := fmt.Sprintf(
		"Summarize the following in %d characters or fewer. Output only the summary, no preamble:\n\n%s",
		maxChars, transcript,
	)
	resp, err := s.provider.Generate(ctx, []llms.Message{{Role: "user", Content: prompt}}, nil)
	if err != nil {
		return "", fmt.Errorf("cmd/conductor: summarize: %w", err)
	}
	out := resp.Content
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out, nil
}

// sandboxRunner adapts sandbox.Executor's (command, RunOpts) -> (Result,
// error) shape into the flat (command, cwd, timeout) -> (string, error)
// shape the evidence package's command_ok check depends on.
type sandboxRunner struct {
	exec *sandbox.Executor
}

func newSandboxRunner(exec *sandbox.Executor) sandboxRunner {
	return sandboxRunner{exec: exec}
}

func (r sandboxRunner) Run(ctx context.Context, command string, cwd string, timeout time.Duration) (string, error) {
	result, err := r.exec.Run(ctx, command, sandbox.RunOpts{Cwd: cwd, Timeout: timeout})
	if err != nil {
		return result.Stdout + result.Stderr, err
	}
	if result.ExitCode != 0 {
		return result.Stdout + result.Stderr, fmt.Errorf("cmd/conductor: command exited %d", result.ExitCode)
	}
	return result.Stdout, nil
}

// watchdogResumer adapts server.Runner.Resume (which returns the resumed
// mission.Def) into watchdog.Resumer's plain error-only shape.
type watchdogResumer struct {
	runner *server.Runner
}

func newWatchdogResumer(runner *server.Runner) watchdogResumer {
	return watchdogResumer{runner: runner}
}

func (r watchdogResumer) Resume(ctx context.Context, runID string) error {
	_, err := r.runner.Resume(ctx, runID)
	return err
}
