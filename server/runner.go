package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/eventbus"
	"github.com/conductorhq/conductor/mission"
)

// Runner starts, pauses, resumes, and cancels mission runs on behalf of the
// Mission Control API, fanning each run's lifecycle events out through an
// eventbus.Bus (grounded on team.Team.ExecuteStreaming's one-goroutine-per-run
// shape, generalized to N concurrently running missions tracked by ID).
type Runner struct {
	orchestrator *mission.Orchestrator
	store        MissionReader
	cfg          *config.Config
	bus          *eventbus.Bus
	log          *slog.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func NewRunner(orchestrator *mission.Orchestrator, store MissionReader, cfg *config.Config, bus *eventbus.Bus, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		orchestrator: orchestrator,
		store:        store,
		cfg:          cfg,
		bus:          bus,
		log:          log,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Start builds a mission.Def from the named workflow template and launches
// it in the background. It returns as soon as the run has been scheduled,
// not when the mission completes.
func (r *Runner) Start(ctx context.Context, projectID, name, brief, workflowID string) (*mission.Def, error) {
	wfCfg, ok := r.cfg.GetWorkflow(workflowID)
	if !ok {
		return nil, fmt.Errorf("server: unknown workflow %q", workflowID)
	}
	wf := mission.WorkflowFromConfig(*wfCfg)

	m := mission.NewMission(uuid.NewString(), projectID, name, brief, workflowID, wf)
	m.Status = mission.StatusRunning
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt

	if err := r.orchestrator.Store.SaveMission(ctx, m); err != nil {
		return nil, fmt.Errorf("server: save new mission: %w", err)
	}

	r.run(m, wf)
	return m, nil
}

// Resume reloads a paused mission from the store and relaunches RunPhases,
// which skips any phase already marked DONE/DONE_WITH_ISSUES/SKIPPED, so the
// run continues rather than restarts.
func (r *Runner) Resume(ctx context.Context, id string) (*mission.Def, error) {
	m, err := r.store.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != mission.StatusPaused {
		return nil, fmt.Errorf("server: mission %s is not paused (status %s)", id, m.Status)
	}

	wfCfg, ok := r.cfg.GetWorkflow(m.WorkflowID)
	if !ok {
		return nil, fmt.Errorf("server: unknown workflow %q", m.WorkflowID)
	}
	wf := mission.WorkflowFromConfig(*wfCfg)

	m.Status = mission.StatusRunning
	if err := r.store.UpdateStatus(ctx, id, mission.StatusRunning); err != nil {
		return nil, err
	}

	r.run(m, wf)
	return m, nil
}

// Pause cancels a running mission's context and marks it paused. The
// in-flight sprint attempt is abandoned, but phases already persisted as
// DONE survive, so Resume picks up at the first pending phase.
func (r *Runner) Pause(ctx context.Context, id string) error {
	if !r.stop(id) {
		return fmt.Errorf("server: mission %s is not running", id)
	}
	return r.store.UpdateStatus(ctx, id, mission.StatusPaused)
}

// Cancel stops a running mission (if any is in flight) and marks it
// abandoned — unlike Pause, an abandoned mission is not resumable.
func (r *Runner) Cancel(ctx context.Context, id string) error {
	r.stop(id)
	return r.store.UpdateStatus(ctx, id, mission.StatusAbandoned)
}

// Get returns one mission's current persisted state.
func (r *Runner) Get(ctx context.Context, id string) (*mission.Def, error) {
	return r.store.GetMission(ctx, id)
}

// List returns missions for a project, or every project when projectID is
// empty.
func (r *Runner) List(ctx context.Context, projectID string) ([]*mission.Def, error) {
	return r.store.ListMissions(ctx, projectID)
}

func (r *Runner) stop(id string) bool {
	r.mu.Lock()
	cancel, ok := r.cancels[id]
	delete(r.cancels, id)
	r.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

func (r *Runner) run(m *mission.Def, wf mission.Workflow) {
	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[m.ID] = cancel
	r.mu.Unlock()

	onEvent := func(eventType string, data map[string]interface{}) {
		if r.bus == nil {
			return
		}
		r.bus.Publish(eventbus.Event{
			Type:      eventType,
			SessionID: m.ID,
			Timestamp: time.Now(),
			Data:      data,
		})
	}

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.cancels, m.ID)
			r.mu.Unlock()
			cancel()
		}()

		err := r.orchestrator.RunPhases(runCtx, m, wf, onEvent)

		if runCtx.Err() != nil {
			// Pause/Cancel already persisted the authoritative status;
			// RunPhases's own terminal status (set below) would race it.
			return
		}

		if err != nil {
			r.log.Error("mission run failed", "mission_id", m.ID, "error", err)
			m.Status = mission.StatusFailed
		}
		m.UpdatedAt = time.Now().UTC()
		if saveErr := r.orchestrator.Store.SaveMission(context.Background(), m); saveErr != nil {
			r.log.Error("persist mission after run", "mission_id", m.ID, "error", saveErr)
		}
		onEvent("mission_status", map[string]interface{}{"status": string(m.Status)})
	}()
}
