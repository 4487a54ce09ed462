package job

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/autoscore/internal/scoring"
)

func newTestRegistry(t *testing.T, scorer Scorer, retention time.Duration) *Registry {
	t.Helper()
	r := NewRegistry(scorer, testPool(t), retention)
	t.Cleanup(r.Close)
	return r
}

func TestRegistry_CreateAndGet(t *testing.T) {
	r := newTestRegistry(t, newFakeScorer(succeedWith(88)), 0)

	ctrl, err := r.CreateJob(context.Background(), testInputs(2), Config{ScoreMin: 40, ScoreMax: 100}, scoring.Reference{})
	require.NoError(t, err)
	waitDone(t, ctrl)

	got, err := r.Get(ctrl.Job().ID)
	require.NoError(t, err)
	assert.Same(t, ctrl, got)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_CreateJobValidation(t *testing.T) {
	r := newTestRegistry(t, newFakeScorer(succeedWith(88)), 0)

	var cerr *ConfigError

	_, err := r.CreateJob(context.Background(), nil, Config{ScoreMin: 40, ScoreMax: 100}, scoring.Reference{})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "tasks", cerr.Field)

	_, err = r.CreateJob(context.Background(), testInputs(1), Config{ScoreMin: 100, ScoreMax: 40}, scoring.Reference{})
	require.ErrorAs(t, err, &cerr)

	assert.Equal(t, 0, r.Len(), "rejected requests must not register jobs")
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := newTestRegistry(t, newFakeScorer(succeedWith(88)), 0)

	_, err := r.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Delete(t *testing.T) {
	r := newTestRegistry(t, newFakeScorer(succeedWith(88)), 0)

	ctrl, err := r.CreateJob(context.Background(), testInputs(1), Config{ScoreMin: 40, ScoreMax: 100}, scoring.Reference{})
	require.NoError(t, err)
	waitDone(t, ctrl)

	r.Delete(ctrl.Job().ID)
	_, err = r.Get(ctrl.Job().ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EvictsExpiredJobs(t *testing.T) {
	r := newTestRegistry(t, newFakeScorer(succeedWith(88)), time.Hour)

	ctrl, err := r.CreateJob(context.Background(), testInputs(1), Config{ScoreMin: 40, ScoreMax: 100}, scoring.Reference{})
	require.NoError(t, err)
	waitDone(t, ctrl)

	r.evictExpired()
	assert.Equal(t, 1, r.Len(), "fresh job stays within the retention window")

	orig := nowFunc
	nowFunc = func() time.Time { return orig().Add(2 * time.Hour) }
	defer func() { nowFunc = orig }()

	r.evictExpired()
	assert.Equal(t, 0, r.Len())
	_, err = r.Get(ctrl.Job().ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_EvictionSkipsRunningJobs(t *testing.T) {
	release := make(chan struct{})
	scorer := newFakeScorer(func(string, int) (*scoring.Result, error) {
		<-release
		return &scoring.Result{StudentID: "1", StudentName: "A", Score: 50}, nil
	})
	r := newTestRegistry(t, scorer, time.Hour)

	ctrl, err := r.CreateJob(context.Background(), testInputs(1), Config{ScoreMin: 40, ScoreMax: 100}, scoring.Reference{})
	require.NoError(t, err)

	orig := nowFunc
	nowFunc = func() time.Time { return orig().Add(2 * time.Hour) }
	defer func() { nowFunc = orig }()

	r.evictExpired()
	assert.Equal(t, 1, r.Len(), "running jobs are never evicted")

	close(release)
	waitDone(t, ctrl)
}
