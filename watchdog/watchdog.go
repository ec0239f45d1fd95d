package watchdog

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Watchdog drives the spec §4.7 check cycle: a 60s tick for the bulk of the
// checks, a separate 10-minute timer for zombie cleanup, and a daily cron
// job for the endurance report.
type Watchdog struct {
	Store     Store
	Metrics   MetricsSink
	Health    HealthChecker
	LLMHealth HealthChecker
	Disk      DiskChecker
	TempFiles TempCleaner
	Resumer   Resumer
	Log       *slog.Logger

	checkCount int
	lastResume time.Time
}

func New(store Store, metrics MetricsSink, health, llmHealth HealthChecker, disk DiskChecker, temp TempCleaner, resumer Resumer, log *slog.Logger) *Watchdog {
	if log == nil {
		log = slog.Default()
	}
	return &Watchdog{Store: store, Metrics: metrics, Health: health, LLMHealth: llmHealth, Disk: disk, TempFiles: temp, Resumer: resumer, Log: log}
}

// Run blocks until ctx is cancelled, driving all three watchdog timers
// concurrently (spec §4.7's main loop, zombie cleanup's "separate 10-minute
// timer", and the once-a-day report).
func (w *Watchdog) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.mainLoop(ctx) })
	g.Go(func() error { return w.zombieLoop(ctx) })
	g.Go(func() error { return w.dailyReportLoop(ctx) })

	return g.Wait()
}

func (w *Watchdog) mainLoop(ctx context.Context) error {
	ticker := time.NewTicker(CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Watchdog) zombieLoop(ctx context.Context) error {
	ticker := time.NewTicker(ZombieCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.cleanupZombies(ctx)
		}
	}
}

// dailyReportLoop schedules the once-a-day report via cron rather than a
// manual date-string comparison (grounded on the other example repos'
// robfig/cron use for day-boundary scheduling).
func (w *Watchdog) dailyReportLoop(ctx context.Context) error {
	c := cron.New(cron.WithLocation(time.UTC))
	if _, err := c.AddFunc("0 0 * * *", func() { w.dailyReport(ctx) }); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return nil
}

// tick runs one full check cycle (spec §4.7 steps 1-6, 8, 9).
func (w *Watchdog) tick(ctx context.Context) {
	w.checkCount++

	healthy, err := w.Health.Check(ctx)
	if err != nil || !healthy {
		w.logMetric(ctx, "health_down", 1, "")
		w.Log.Error("watchdog: platform health check failed")
		return
	}

	w.checkStalledMissions(ctx)

	if w.checkCount%2 == 0 {
		w.recoverStaleSessions(ctx)
	}
	if w.checkCount%5 == 0 {
		w.cleanupFailedSessions(ctx)
	}
	if w.checkCount%30 == 0 {
		w.cleanupPhantomRuns(ctx)
	}

	if time.Since(w.lastResume) > ResumeInterval {
		w.autoResume(ctx)
		w.lastResume = time.Now()
	}

	if w.checkCount%5 == 0 {
		w.checkDisk(ctx)
		w.checkLLMHealth(ctx)
	}
}

func (w *Watchdog) checkStalledMissions(ctx context.Context) {
	stalls, err := w.Store.StalledMissions(ctx, PhaseStallThreshold)
	if err != nil {
		w.Log.Warn("watchdog: stall check failed", "error", err)
		return
	}
	max := 3
	if len(stalls) < max {
		max = len(stalls)
	}
	for _, s := range stalls[:max] {
		w.Log.Warn("watchdog: mission stalled, triggering retry", "mission_id", s.ID, "phase", s.CurrentPhase, "stall_seconds", int(s.StallDuration.Seconds()))
		w.logMetric(ctx, "stall_detected", s.StallDuration.Seconds(), "mission="+s.ID+" phase="+s.CurrentPhase)
		if err := w.Store.RecordMissionRetried(ctx, s.ID); err != nil {
			w.Log.Warn("watchdog: retry failed", "mission_id", s.ID, "error", err)
			w.logMetric(ctx, "stall_retry", 0, "mission="+s.ID)
			continue
		}
		w.logMetric(ctx, "stall_retry", 1, "mission="+s.ID)
	}
}

func (w *Watchdog) recoverStaleSessions(ctx context.Context) {
	sessionIDs, err := w.Store.StaleSessions(ctx, SessionStaleThreshold)
	if err != nil {
		w.Log.Warn("watchdog: session recovery error", "error", err)
		return
	}
	for _, id := range sessionIDs {
		if err := w.Store.RecoverStaleSession(ctx, id); err != nil {
			w.Log.Warn("watchdog: failed recovering stale session", "session_id", id, "error", err)
			continue
		}
		w.logMetric(ctx, "session_stale_recovered", 1, "session="+id)
	}
	if len(sessionIDs) > 0 {
		w.logMetric(ctx, "sessions_recovered", float64(len(sessionIDs)), "")
	}
}

func (w *Watchdog) cleanupFailedSessions(ctx context.Context) {
	ids, err := w.Store.FailedSessionsToClean(ctx)
	if err != nil {
		w.Log.Warn("watchdog: session cleanup error", "error", err)
		return
	}
	for _, id := range ids {
		_ = w.Store.MarkSessionFailed(ctx, id)
	}
	if len(ids) > 0 {
		w.logMetric(ctx, "session_cleanup", float64(len(ids)), "")
	}
}

func (w *Watchdog) cleanupPhantomRuns(ctx context.Context) {
	ids, err := w.Store.PhantomRuns(ctx, PhantomRunThreshold)
	if err != nil {
		w.Log.Warn("watchdog: phantom run cleanup error", "error", err)
		return
	}
	for _, id := range ids {
		_ = w.Store.AbandonRun(ctx, id)
	}
	if len(ids) > 0 {
		w.logMetric(ctx, "phantom_runs_abandoned", float64(len(ids)), "")
	}
}

// autoResume implements the two-phase critical section from spec §4.7 step 6
// and §5 "Concurrency discipline": all DB reads/writes for selection happen
// first, then the connection is implicitly released before any resume I/O
// runs.
func (w *Watchdog) autoResume(ctx context.Context) {
	running, err := w.Store.RunningCount(ctx)
	if err != nil {
		w.Log.Warn("watchdog: auto-resume error", "error", err)
		return
	}
	if running >= MaxConcurrentRuns {
		w.Log.Info("watchdog: runs already active, skipping resume", "running", running, "max", MaxConcurrentRuns)
		return
	}
	slots := ResumeBatchSize
	if avail := MaxConcurrentRuns - running; avail < slots {
		slots = avail
	}

	eligible, err := w.Store.EligiblePausedRuns(ctx, MaxResumeAttempts, slots*3)
	if err != nil {
		w.Log.Warn("watchdog: auto-resume error", "error", err)
		return
	}

	now := time.Now().UTC()
	toResume := make([]PausedRun, 0, slots)
	for _, r := range eligible {
		if !r.HasWorkflowID {
			continue
		}
		waitIdx := r.Attempts
		if waitIdx >= len(BackoffMinutes) {
			waitIdx = len(BackoffMinutes) - 1
		}
		wait := time.Duration(BackoffMinutes[waitIdx]) * time.Minute
		if !r.LastResumeAt.IsZero() && now.Sub(r.LastResumeAt) < wait {
			continue
		}
		toResume = append(toResume, r)
		if len(toResume) >= slots {
			break
		}
	}

	for _, r := range toResume {
		newAttempt := r.Attempts + 1
		if err := w.Store.BeginResume(ctx, r.ID, newAttempt, now); err != nil {
			w.Log.Warn("watchdog: begin resume failed", "run_id", r.ID, "error", err)
			continue
		}
		if err := w.Resumer.Resume(ctx, r.ID); err != nil {
			w.logMetric(ctx, "auto_resume_fail", 0, err.Error())
			_ = w.Store.RevertToPaused(ctx, r.ID)
			continue
		}
		w.logMetric(ctx, "auto_resume", 1, "run="+r.ID)
		w.Log.Warn("watchdog: auto-resumed run", "run_id", r.ID, "attempt", newAttempt)
	}

	if abandoned, err := w.Store.AbandonExhaustedResumes(ctx, MaxResumeAttempts); err == nil && abandoned > 0 {
		w.Log.Warn("watchdog: abandoned missions that exhausted resume retries", "count", abandoned)
	}
}

func (w *Watchdog) checkDisk(ctx context.Context) {
	pct, err := w.Disk.UsagePercent(ctx)
	if err != nil {
		w.Log.Warn("watchdog: disk check failed", "error", err)
		return
	}
	w.logMetric(ctx, "disk_usage_pct", pct, "")
	if pct >= DiskAlertPct {
		w.Log.Warn("watchdog: disk usage above threshold, cleaning up", "usage_pct", pct, "threshold_pct", DiskAlertPct)
		if _, err := w.TempFiles.CleanOlderThan(ctx, TempFilePattern, TempFileAge); err != nil {
			w.Log.Warn("watchdog: temp cleanup failed", "error", err)
		}
	}
}

func (w *Watchdog) checkLLMHealth(ctx context.Context) {
	if w.LLMHealth == nil {
		return
	}
	ok, err := w.LLMHealth.Check(ctx)
	val := 0.0
	if ok && err == nil {
		val = 1
	}
	w.logMetric(ctx, "llm_health", val, "")
	if val == 0 {
		w.Log.Warn("watchdog: LLM health check failed")
	}
}

// cleanupZombies is the separate 10-minute timer (spec §4.7 step 7).
func (w *Watchdog) cleanupZombies(ctx context.Context) {
	running, err := w.Store.ZombieRunning(ctx, ZombieRunningThreshold)
	if err == nil {
		for _, id := range running {
			_ = w.Store.FailRun(ctx, id, "zombie: stale for >6h")
		}
	}
	hardStale, err := w.Store.ZombieRunning(ctx, ZombieRunningHardThreshold)
	if err == nil {
		for _, id := range hardStale {
			_ = w.Store.FailRun(ctx, id, "zombie: stale for >48h")
		}
	}
	paused, err := w.Store.ZombiePaused(ctx, ZombiePausedThreshold)
	if err == nil {
		for _, id := range paused {
			_ = w.Store.AbandonRun(ctx, id)
		}
	}
}

func (w *Watchdog) dailyReport(ctx context.Context) {
	today := time.Now().UTC().Format("2006-01-02")
	stats, err := w.Store.DailyStats(ctx, today)
	if err != nil {
		w.Log.Warn("watchdog: daily report failed", "error", err)
		return
	}
	w.logMetric(ctx, "daily_report", 1, reportDetail(stats))
	w.Log.Info("watchdog daily report", "phases", stats.PhasesCompleted, "stalls", stats.Stalls, "chaos", stats.ChaosEvents)
}

func reportDetail(s DailyStats) string {
	return "phases=" + strconv.Itoa(s.PhasesCompleted) + ", chaos=" + strconv.Itoa(s.ChaosEvents) + ", stalls=" + strconv.Itoa(s.Stalls)
}

func (w *Watchdog) logMetric(ctx context.Context, metric string, value float64, detail string) {
	if w.Metrics == nil {
		return
	}
	if err := w.Metrics.LogMetric(ctx, metric, value, detail); err != nil {
		w.Log.Warn("watchdog: failed to log metric", "metric", metric, "error", err)
	}
}
