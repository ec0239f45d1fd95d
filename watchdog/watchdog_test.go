package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	stalls        []StalledMission
	retried       []string
	staleSessions []string
	recovered     []string
	phantoms      []string
	abandoned     []string
	eligible      []PausedRun
	resumedIDs    []string
	reverted      []string
	running       int
	zombieRunning []string
	zombiePaused  []string
	failed        map[string]string
}

func (s *fakeStore) StalledMissions(context.Context, time.Duration) ([]StalledMission, error) {
	return s.stalls, nil
}
func (s *fakeStore) RecordMissionRetried(_ context.Context, id string) error {
	s.retried = append(s.retried, id)
	return nil
}
func (s *fakeStore) StaleSessions(context.Context, time.Duration) ([]string, error) {
	return s.staleSessions, nil
}
func (s *fakeStore) RecoverStaleSession(_ context.Context, id string) error {
	s.recovered = append(s.recovered, id)
	return nil
}
func (s *fakeStore) FailedSessionsToClean(context.Context) ([]string, error) { return nil, nil }
func (s *fakeStore) MarkSessionFailed(context.Context, string) error        { return nil }
func (s *fakeStore) PhantomRuns(context.Context, time.Duration) ([]string, error) {
	return s.phantoms, nil
}
func (s *fakeStore) AbandonRun(_ context.Context, id string) error {
	s.abandoned = append(s.abandoned, id)
	return nil
}
func (s *fakeStore) RunningCount(context.Context) (int, error) { return s.running, nil }
func (s *fakeStore) EligiblePausedRuns(context.Context, int, int) ([]PausedRun, error) {
	return s.eligible, nil
}
func (s *fakeStore) BeginResume(_ context.Context, id string, _ int, _ time.Time) error {
	s.resumedIDs = append(s.resumedIDs, id)
	return nil
}
func (s *fakeStore) RevertToPaused(_ context.Context, id string) error {
	s.reverted = append(s.reverted, id)
	return nil
}
func (s *fakeStore) AbandonExhaustedResumes(context.Context, int) (int, error) { return 0, nil }
func (s *fakeStore) ZombieRunning(_ context.Context, threshold time.Duration) ([]string, error) {
	if threshold == ZombieRunningHardThreshold {
		return nil, nil
	}
	return s.zombieRunning, nil
}
func (s *fakeStore) ZombiePaused(context.Context, time.Duration) ([]string, error) {
	return s.zombiePaused, nil
}
func (s *fakeStore) FailRun(_ context.Context, id, reason string) error {
	if s.failed == nil {
		s.failed = map[string]string{}
	}
	s.failed[id] = reason
	return nil
}
func (s *fakeStore) DailyStats(context.Context, string) (DailyStats, error) {
	return DailyStats{PhasesCompleted: 3, Stalls: 1}, nil
}

type fakeMetrics struct {
	logged map[string]float64
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{logged: map[string]float64{}} }

func (m *fakeMetrics) LogMetric(_ context.Context, metric string, value float64, _ string) error {
	m.logged[metric] = value
	return nil
}

type fakeHealth struct{ ok bool }

func (h fakeHealth) Check(context.Context) (bool, error) { return h.ok, nil }

type fakeResumer struct {
	fail map[string]bool
	ran  []string
}

func (r *fakeResumer) Resume(_ context.Context, id string) error {
	r.ran = append(r.ran, id)
	if r.fail[id] {
		return assert.AnError
	}
	return nil
}

func TestTick_HealthDown_SkipsRestOfCycle(t *testing.T) {
	store := &fakeStore{stalls: []StalledMission{{ID: "m1"}}}
	metrics := newFakeMetrics()
	w := New(store, metrics, fakeHealth{ok: false}, nil, nil, nil, &fakeResumer{}, nil)

	w.tick(context.Background())

	assert.Equal(t, float64(1), metrics.logged["health_down"])
	assert.Empty(t, store.retried)
}

func TestCheckStalledMissions_RetriesUpToThree(t *testing.T) {
	store := &fakeStore{stalls: []StalledMission{
		{ID: "m1", StallDuration: 1000 * time.Second},
		{ID: "m2", StallDuration: 2000 * time.Second},
		{ID: "m3", StallDuration: 3000 * time.Second},
		{ID: "m4", StallDuration: 4000 * time.Second},
	}}
	metrics := newFakeMetrics()
	w := New(store, metrics, fakeHealth{ok: true}, nil, nil, nil, &fakeResumer{}, nil)

	w.checkStalledMissions(context.Background())

	require.Len(t, store.retried, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, store.retried)
}

func TestAutoResume_SkipsWhenAtCapacity(t *testing.T) {
	store := &fakeStore{running: MaxConcurrentRuns}
	resumer := &fakeResumer{}
	w := New(store, newFakeMetrics(), fakeHealth{ok: true}, nil, nil, nil, resumer, nil)

	w.autoResume(context.Background())

	assert.Empty(t, resumer.ran)
}

func TestAutoResume_ResumesEligibleRuns(t *testing.T) {
	store := &fakeStore{
		running:  0,
		eligible: []PausedRun{{ID: "r1", Attempts: 0, HasWorkflowID: true}},
	}
	resumer := &fakeResumer{}
	w := New(store, newFakeMetrics(), fakeHealth{ok: true}, nil, nil, nil, resumer, nil)

	w.autoResume(context.Background())

	assert.Equal(t, []string{"r1"}, store.resumedIDs)
	assert.Equal(t, []string{"r1"}, resumer.ran)
	assert.Empty(t, store.reverted)
}

func TestAutoResume_RevertsOnResumeFailure(t *testing.T) {
	store := &fakeStore{
		running:  0,
		eligible: []PausedRun{{ID: "r1", Attempts: 0, HasWorkflowID: true}},
	}
	resumer := &fakeResumer{fail: map[string]bool{"r1": true}}
	w := New(store, newFakeMetrics(), fakeHealth{ok: true}, nil, nil, nil, resumer, nil)

	w.autoResume(context.Background())

	assert.Equal(t, []string{"r1"}, store.reverted)
}

func TestAutoResume_SkipsRunsWithoutWorkflow(t *testing.T) {
	store := &fakeStore{
		running:  0,
		eligible: []PausedRun{{ID: "r1", HasWorkflowID: false}},
	}
	resumer := &fakeResumer{}
	w := New(store, newFakeMetrics(), fakeHealth{ok: true}, nil, nil, nil, resumer, nil)

	w.autoResume(context.Background())

	assert.Empty(t, resumer.ran)
}

func TestCleanupZombies(t *testing.T) {
	store := &fakeStore{
		zombieRunning: []string{"run1"},
		zombiePaused:  []string{"run2"},
	}
	w := New(store, newFakeMetrics(), fakeHealth{ok: true}, nil, nil, nil, &fakeResumer{}, nil)

	w.cleanupZombies(context.Background())

	assert.Equal(t, "zombie: stale for >6h", store.failed["run1"])
	assert.Equal(t, []string{"run2"}, store.abandoned)
}

func TestDailyReport(t *testing.T) {
	store := &fakeStore{}
	metrics := newFakeMetrics()
	w := New(store, metrics, fakeHealth{ok: true}, nil, nil, nil, &fakeResumer{}, nil)

	w.dailyReport(context.Background())

	assert.Equal(t, float64(1), metrics.logged["daily_report"])
}
