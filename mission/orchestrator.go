package mission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conductorhq/conductor/errs"
)

// Orchestrator drives one mission through its workflow's phases (spec
// §4.6's run_phases algorithm).
type Orchestrator struct {
	Store      Store
	Memory     Memory
	Pattern    PatternRunner
	Summarizer Summarizer
	Evidence   EvidenceChecker
	Feedback   Feedback
	Log        *slog.Logger
}

func New(store Store, memory Memory, runner PatternRunner, summarizer Summarizer, evidence EvidenceChecker, feedback Feedback, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{Store: store, Memory: memory, Pattern: runner, Summarizer: summarizer, Evidence: evidence, Feedback: feedback, Log: log}
}

// RunPhases walks mission.Phases against workflow.Phases, applying sprint
// iteration, evidence gates, reloop-on-failure, and feedback hooks (spec
// §4.6 "Main loop run_phases()").
func (o *Orchestrator) RunPhases(ctx context.Context, m *Def, wf Workflow, onEvent EventFunc) error {
	emit := func(eventType string, data map[string]interface{}) {
		if onEvent != nil {
			onEvent(eventType, data)
		}
	}
	if len(m.Phases) != len(wf.Phases) {
		return errs.New("mission", "RunPhases", "phase count mismatch between mission and workflow", nil)
	}

	var phaseSummaries []string

	i := 0
	for i < len(m.Phases) {
		phase := &m.Phases[i]
		wfPhase := wf.Phases[i]

		if phase.Status == PhaseDone || phase.Status == PhaseDoneWithIssues || phase.Status == PhaseSkipped {
			i++
			continue
		}

		o.announcePhase(ctx, m, wfPhase)
		emit("phase_started", map[string]interface{}{"phase_id": wfPhase.PhaseID})
		phase.Status = PhaseRunning
		phase.StartedAt = time.Now()

		devPhase := isDevPhase(wfPhase.Name)
		maxSprints := 1
		if devPhase && wfPhase.Config.MaxIterations > 0 {
			maxSprints = wfPhase.Config.MaxIterations
		}

		var phaseSuccess bool
		var phaseErr string
		var prevContext string

		for sprintNum := 1; sprintNum <= maxSprints; sprintNum++ {
			task := o.buildPhaseTask(ctx, m, wfPhase, phaseSummaries, sprintNum, prevContext)

			result, err := o.runSprintWithRetry(ctx, m, wfPhase, task, emit)
			phaseSuccess = err == nil && result
			if err != nil {
				phaseErr = err.Error()
			}

			if devPhase {
				o.persistRetrospective(ctx, m, wfPhase, sprintNum, phaseSuccess, phaseErr)
			}

			if !phaseSuccess && sprintNum < maxSprints {
				prevContext += fmt.Sprintf("[REJET itération %d]: %s\n", sprintNum, truncate(phaseErr, 500))
				continue
			}

			if phaseSuccess && devPhase && len(wfPhase.Config.AcceptanceCriteria) > 0 && o.Evidence != nil {
				passed, report := o.Evidence.Check(ctx, m.WorkspacePath, wfPhase.Config.AcceptanceCriteria)
				emit("evidence_gate", map[string]interface{}{"phase_id": wfPhase.PhaseID, "passed": passed, "report": report})
				if !passed {
					if sprintNum < maxSprints {
						prevContext += "[Evidence Gate] " + report + "\n"
						continue
					}
					phaseSuccess = false
					phaseErr = "evidence gate failed: " + report
				}
			}
			break
		}

		if wfPhase.PatternID == "human-in-the-loop" {
			phase.Status = PhaseWaitingValidation
			if o.Store != nil {
				_ = o.Store.SaveMission(ctx, m)
			}
			finalStatus, ok := o.waitForValidation(ctx, m, phase)
			if !ok {
				phase.Status = PhaseDone
			} else if finalStatus == PhaseFailed {
				m.Status = StatusFailed
				emit("mission_failed", map[string]interface{}{"phase_id": wfPhase.PhaseID})
				return nil
			} else {
				phase.Status = finalStatus
			}
		} else if phaseSuccess {
			phase.Status = PhaseDone
		} else {
			phase.Status = PhaseFailed
		}
		phase.CompletedAt = time.Now()

		if phaseSuccess {
			summary := o.summarizePhase(ctx, wfPhase, phaseErr)
			phase.Summary = summary
			if o.Memory != nil {
				_ = o.Memory.Store(ctx, m.ProjectID, "phase-summary: "+wfPhase.PhaseID, summary)
			}
			phaseSummaries = append(phaseSummaries, summary)
		} else {
			phase.Summary = "Phase échouée — " + truncate(phaseErr, 200)
		}

		emit("phase_completed", map[string]interface{}{"phase_id": wfPhase.PhaseID, "status": string(phase.Status)})

		o.triggerFeedback(ctx, m, wfPhase, phaseSuccess, phaseErr)

		gate := wfPhase.Config.Gate
		if gate == "" {
			gate = "always"
		}
		isExecutionPhase := devPhase
		isBlocking := gate == "all_approved" || gate == "no_veto" || isExecutionPhase
		// A "no_veto" gate means a human reviewer would have had to
		// explicitly clear this phase to let it slide; its failure is
		// fatal on the spot rather than reloop-eligible.
		isHitlGate := gate == "no_veto"

		if !phaseSuccess && isBlocking && isHitlGate {
			m.Status = StatusFailed
			emit("mission_failed", map[string]interface{}{"phase_id": wfPhase.PhaseID})
			return nil
		}
		if !phaseSuccess && !isBlocking {
			phase.Status = PhaseDoneWithIssues
			phase.Summary = o.summarizePhase(ctx, wfPhase, phaseErr)
		}

		if !phaseSuccess && m.reloopCount < MaxReloops {
			if reloopablePhaseIDs[wfPhase.PhaseID] {
				if devIdx := firstDevPhaseIndex(wf); devIdx >= 0 && devIdx <= i {
					m.reloopCount++
					for j := devIdx; j < len(m.Phases); j++ {
						m.Phases[j].Status = PhasePending
						m.Phases[j].Summary = ""
						m.Phases[j].StartedAt = time.Time{}
						m.Phases[j].CompletedAt = time.Time{}
					}
					prevContext += "[Reloop] phase " + wfPhase.PhaseID + " failed: " + truncate(phaseErr, 300) + "\n"
					emit("reloop", map[string]interface{}{"from_phase": wfPhase.PhaseID, "to_phase": wf.Phases[devIdx].PhaseID, "count": m.reloopCount})
					i = devIdx
					continue
				}
			}
		}

		i++
	}

	if m.Status != StatusFailed {
		m.Status = StatusCompleted
	}
	return nil
}

func firstDevPhaseIndex(wf Workflow) int {
	for idx, p := range wf.Phases {
		if isDevPhase(p.Name) {
			return idx
		}
	}
	return -1
}

// runSprintWithRetry runs one sprint's pattern attempt under PhaseTimeout,
// making at most MaxLLMRetries attempts in all and retrying only on a
// timeout or rate-limit error (spec §4.6).
func (o *Orchestrator) runSprintWithRetry(ctx context.Context, m *Def, wfPhase WorkflowPhase, task string, emit EventFunc) (bool, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxLLMRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, PhaseTimeout)
		success, errMsg := o.Pattern.RunPattern(attemptCtx, wfPhase.PatternID, wfPhase.Config.AgentIDs, wfPhase.Config.MaxIterations, task, RunNodeContext{
			SessionID:   m.ID,
			ProjectID:   m.ProjectID,
			ProjectPath: m.WorkspacePath,
			FlowStep:    wfPhase.PhaseID,
			OnEvent:     emit,
		})
		cancel()

		if errMsg == "" {
			return success, nil
		}
		lastErr = errs.New("mission", "runSprintWithRetry", errMsg, nil)
		if !isRetryable(errMsg) || attempt == MaxLLMRetries {
			return success, lastErr
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(LLMRetryDelay):
		}
	}
	return false, lastErr
}

func isRetryable(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "timeout") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "rate_limit")
}

// announcePhase posts a CDP system message announcing the phase (spec §4.6
// "announce phase"); RunPhases emits the phase_started event itself.
func (o *Orchestrator) announcePhase(ctx context.Context, m *Def, wfPhase WorkflowPhase) {
	if o.Store != nil {
		_ = o.Store.AppendMessage(ctx, m.ID, "system", "system", "Starting phase: "+wfPhase.Name)
	}
}

// buildPhaseTask composes the sprint's task prompt: prior phase summaries
// (last 5), the sprint banner, backlog items, architecture notes, and
// prevContext (rejection, evidence-gate and reloop notes from earlier
// attempts). Retrospectives stored by persistRetrospective are not read
// back into the prompt.
func (o *Orchestrator) buildPhaseTask(ctx context.Context, m *Def, wfPhase WorkflowPhase, phaseSummaries []string, sprintNum int, prevContext string) string {
	var b strings.Builder
	b.WriteString("Mission: " + m.Brief + "\n\n")
	b.WriteString("[Phase] " + wfPhase.Name + "\n")
	if sprintNum > 1 {
		b.WriteString(fmt.Sprintf("[Sprint %d]\n", sprintNum))
	}

	if len(phaseSummaries) > 0 {
		b.WriteString("\n[Prior phases]\n")
		for _, s := range lastN(phaseSummaries, 5) {
			b.WriteString("- " + s + "\n")
		}
	}

	if o.Memory != nil {
		if backlog, err := o.Memory.Search(ctx, m.ProjectID, "product", 5); err == nil && len(backlog) > 0 {
			b.WriteString("\n[Backlog]\n")
			for _, item := range backlog {
				b.WriteString("- " + item + "\n")
			}
		}
		if arch, err := o.Memory.Search(ctx, m.ProjectID, "architecture", 5); err == nil && len(arch) > 0 {
			b.WriteString("\n[Architecture notes]\n")
			for _, note := range arch {
				b.WriteString("- " + note + "\n")
			}
		}
	}

	if prevContext != "" {
		b.WriteString("\n[Prior attempts]\n" + prevContext)
	}
	return b.String()
}

func lastN(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}

// persistRetrospective summarizes one dev sprint to ≤300 chars with a
// 30-second deadline and stores it as project memory (spec §4.6).
func (o *Orchestrator) persistRetrospective(ctx context.Context, m *Def, wfPhase WorkflowPhase, sprintNum int, success bool, errMsg string) {
	if o.Summarizer == nil || o.Memory == nil {
		return
	}
	outcome := "succeeded"
	if !success {
		outcome = "failed: " + errMsg
	}
	transcript := fmt.Sprintf("Sprint %d of phase %s %s", sprintNum, wfPhase.PhaseID, outcome)

	sctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	summary, err := o.Summarizer.Summarize(sctx, transcript, 300)
	if err != nil {
		return
	}
	_ = o.Memory.Store(ctx, m.ProjectID, fmt.Sprintf("retrospective: %s sprint %d", wfPhase.PhaseID, sprintNum), summary)
}

// summarizePhase condenses the phase's discussion transcript to ≤200
// chars with a 45-second deadline (spec §4.6). With no Summarizer wired,
// it falls back to a plain truncation.
func (o *Orchestrator) summarizePhase(ctx context.Context, wfPhase WorkflowPhase, errMsg string) string {
	transcript := "Phase " + wfPhase.PhaseID + " completed."
	if errMsg != "" {
		transcript += " Issues: " + errMsg
	}
	if o.Summarizer == nil {
		return truncate(transcript, 200)
	}
	sctx, cancel := context.WithTimeout(ctx, 45*time.Second)
	defer cancel()
	summary, err := o.Summarizer.Summarize(sctx, truncate(transcript, 2000), 200)
	if err != nil {
		return truncate(transcript, 200)
	}
	return summary
}

// waitForValidation polls phase.Status for up to HumanInLoopWait for a
// human reviewer to flip it to DONE or FAILED out-of-band; on timeout it
// reports !ok so the caller defaults to DONE (spec §4.6).
func (o *Orchestrator) waitForValidation(ctx context.Context, m *Def, phase *Phase) (PhaseStatus, bool) {
	deadline := time.Now().Add(HumanInLoopWait)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", false
		case <-ticker.C:
			if phase.Status == PhaseDone || phase.Status == PhaseFailed {
				return phase.Status, true
			}
		}
	}
	return "", false
}

// triggerFeedback fires the external feedback hooks a phase outcome maps
// to (spec §4.6 "CDP announces and decides ... feedback triggers").
func (o *Orchestrator) triggerFeedback(ctx context.Context, m *Def, wfPhase WorkflowPhase, success bool, errMsg string) {
	if o.Feedback == nil {
		return
	}
	switch wfPhase.PhaseID {
	case "deploy-prod", "deploy":
		if success {
			o.Feedback.OnDeployCompleted(ctx, m)
		} else {
			o.Feedback.OnDeployFailed(ctx, m, errMsg)
		}
	case "fix", "tma-fix", "validate":
		if success && (m.Type == "bug" || m.Type == "program") {
			o.Feedback.OnTMAIncidentFixed(ctx, m.ID)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
