package watchdog

import (
	"context"
	"time"
)

// Store is the subset of mission/session persistence the watchdog drives
// its checks from (spec §6 "Project / Mission Store", narrowed to the
// watchdog's read/write shape per spec §4.7).
type Store interface {
	StalledMissions(ctx context.Context, threshold time.Duration) ([]StalledMission, error)
	RecordMissionRetried(ctx context.Context, missionID string) error

	StaleSessions(ctx context.Context, threshold time.Duration) ([]string, error)
	RecoverStaleSession(ctx context.Context, sessionID string) error

	FailedSessionsToClean(ctx context.Context) ([]string, error)
	MarkSessionFailed(ctx context.Context, sessionID string) error

	PhantomRuns(ctx context.Context, threshold time.Duration) ([]string, error)
	AbandonRun(ctx context.Context, runID string) error

	RunningCount(ctx context.Context) (int, error)
	EligiblePausedRuns(ctx context.Context, maxAttempts, limit int) ([]PausedRun, error)
	BeginResume(ctx context.Context, runID string, attempt int, now time.Time) error
	RevertToPaused(ctx context.Context, runID string) error
	AbandonExhaustedResumes(ctx context.Context, maxAttempts int) (int, error)

	ZombieRunning(ctx context.Context, threshold time.Duration) ([]string, error)
	ZombiePaused(ctx context.Context, threshold time.Duration) ([]string, error)
	FailRun(ctx context.Context, runID, reason string) error

	DailyStats(ctx context.Context, utcDate string) (DailyStats, error)
}

// Resumer drives the actual resume side effect once the store has flipped a
// run's bookkeeping to running (spec §4.7 step 6: "invoke the resume routine
// asynchronously"). Kept separate from Store so the DB write and the resume
// I/O never share a critical section.
type Resumer interface {
	Resume(ctx context.Context, runID string) error
}

// MetricsSink records one watchdog observation (spec §4.7: "Each check
// failure is logged to a metrics table {ts, metric, value, detail}").
type MetricsSink interface {
	LogMetric(ctx context.Context, metric string, value float64, detail string) error
}

// HealthChecker probes the platform's own health endpoint (spec §4.7 step 1).
type HealthChecker interface {
	Check(ctx context.Context) (bool, error)
}

// DiskChecker reports root filesystem usage as a percentage (spec §4.7 step 8).
type DiskChecker interface {
	UsagePercent(ctx context.Context) (float64, error)
}

// TempCleaner removes stale scratch files once disk usage trips the alert
// threshold (spec §4.7 step 8).
type TempCleaner interface {
	CleanOlderThan(ctx context.Context, pattern string, age time.Duration) (int, error)
}
