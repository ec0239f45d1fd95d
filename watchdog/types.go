// Package watchdog is the endurance loop that detects stalls, zombies, and
// stale sessions without operator intervention (spec §4.7). Translated from
// the Python endurance watchdog's tick structure into a ticker-driven Go
// loop with the same check cadence (every Nth tick) and the same metric
// names logged to a metrics sink.
package watchdog

import "time"

// CheckInterval is how often the main tick fires (spec §4.7 step list
// preamble).
const CheckInterval = 60 * time.Second

// PhaseStallThreshold is how long a running mission may go without a
// progress update before it's considered stalled (spec §4.7 step 2).
const PhaseStallThreshold = 900 * time.Second

// SessionStaleThreshold is how long an active session may go without a new
// message before it's recovered as interrupted (spec §4.7 step 3).
const SessionStaleThreshold = 1800 * time.Second

// ResumeInterval gates how often the auto-resume pass runs (spec §4.7 step 6).
const ResumeInterval = 300 * time.Second

// ResumeBatchSize caps how many paused runs one auto-resume pass resumes
// (spec §4.7 step 6).
const ResumeBatchSize = 5

// MaxConcurrentRuns caps total running missions before auto-resume backs off
// (spec §4.7 step 6).
const MaxConcurrentRuns = 10

// MaxResumeAttempts is the resume budget before a paused run is abandoned
// (spec §4.7 step 6, scenario 4).
const MaxResumeAttempts = 5

// BackoffMinutes is the per-attempt wait schedule for auto-resume eligibility
// (spec §4.7 step 6: "[0, 5, 15, 30, 60]").
var BackoffMinutes = []int{0, 5, 15, 30, 60}

// DiskAlertPct is the disk-usage threshold that triggers temp-file cleanup
// (spec §4.7 step 8).
const DiskAlertPct = 90

// ZombieCheckInterval is the separate timer for zombie-run cleanup (spec
// §4.7 step 7: "separate 10-minute timer").
const ZombieCheckInterval = 10 * time.Minute

// ZombieRunningThreshold fails a running mission outright once it has gone
// this long without an update (spec §4.7 step 7).
const ZombieRunningThreshold = 6 * time.Hour

// ZombieRunningHardThreshold fails a running mission regardless of reason
// past this age (spec §4.7 step 7).
const ZombieRunningHardThreshold = 48 * time.Hour

// ZombiePausedThreshold abandons a paused mission that's gone stale this long
// (spec §4.7 step 7).
const ZombiePausedThreshold = 24 * time.Hour

// PhantomRunThreshold is the age past which a running/paused run is
// abandoned outright as a phantom (spec §4.7 step 5).
const PhantomRunThreshold = 48 * time.Hour

// TempFilePattern/TempFileAge are the cleanup targets when disk usage trips
// DiskAlertPct (spec §4.7 step 8: "delete /tmp/macaron_* older than 7 days").
const TempFilePattern = "macaron_*"

const TempFileAge = 7 * 24 * time.Hour

// StalledMission is one running mission whose updated_at is stale (spec
// §4.7 step 2).
type StalledMission struct {
	ID            string
	Name          string
	CurrentPhase  string
	StallDuration time.Duration
}

// PausedRun is a resume candidate surfaced by the store (spec §4.7 step 6).
type PausedRun struct {
	ID             string
	SessionID      string
	Attempts       int
	LastResumeAt   time.Time
	HasWorkflowID  bool
}

// DailyStats is the count set the daily report logs (spec §4.7 step 10).
type DailyStats struct {
	PhasesCompleted int
	Stalls          int
	ChaosEvents     int
}
