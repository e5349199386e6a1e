package reward

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

func newTestJob(t *testing.T, totalUsers int) *Job {
	t.Helper()
	job, err := NewJob(NewJobParams{
		ID:         "job-1",
		Category:   ranking.CategoryStudents,
		Period:     timeutil.Period{Month: 6, Year: 2025},
		SnapshotID: "snap-1",
		BatchSize:  50,
		TotalUsers: totalUsers,
	})
	require.NoError(t, err)
	return job
}

func TestNewJob(t *testing.T) {
	job := newTestJob(t, 120)

	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 3, job.TotalBatches)
	assert.Equal(t, 0, job.CurrentBatch)
	assert.Nil(t, job.StartedAt)
}

func TestNewJob_Validation(t *testing.T) {
	_, err := NewJob(NewJobParams{Category: ranking.CategoryStudents, Period: timeutil.Period{Month: 1, Year: 2025}, SnapshotID: "s"})
	assert.Error(t, err)

	_, err = NewJob(NewJobParams{ID: "j", Category: ranking.Category("bots"), Period: timeutil.Period{Month: 1, Year: 2025}, SnapshotID: "s"})
	assert.Error(t, err)

	_, err = NewJob(NewJobParams{ID: "j", Category: ranking.CategoryStudents, Period: timeutil.Period{Month: 1, Year: 2025}})
	assert.Error(t, err)
}

func TestJob_HasPendingWork(t *testing.T) {
	now := time.Now()
	job := newTestJob(t, 120)

	// pending: always claimable
	assert.True(t, job.HasPendingWork(now, DefaultStaleness))

	// processing with a fresh lease: held by another worker
	require.NoError(t, job.MarkProcessing(now))
	assert.False(t, job.HasPendingWork(now.Add(time.Minute), DefaultStaleness))

	// processing with a stale lease: presumed abandoned
	assert.True(t, job.HasPendingWork(now.Add(10*time.Minute), DefaultStaleness))

	// terminal: never claimable
	require.NoError(t, job.MarkCompleted(now))
	assert.True(t, job.Status.IsTerminal())
	assert.False(t, job.HasPendingWork(now.Add(time.Hour), DefaultStaleness))
}

func TestJob_MarkProcessing_StampsStartedAtOnce(t *testing.T) {
	job := newTestJob(t, 120)
	first := time.Now()

	require.NoError(t, job.MarkProcessing(first))
	require.NotNil(t, job.StartedAt)

	// resume later: StartedAt is preserved so duration spans resumes
	require.NoError(t, job.MarkProcessing(first.Add(time.Hour)))
	assert.Equal(t, first, *job.StartedAt)
}

func TestJob_CompletedDuration(t *testing.T) {
	job := newTestJob(t, 120)
	start := time.Now()

	require.NoError(t, job.MarkProcessing(start))
	require.NoError(t, job.MarkCompleted(start.Add(90*time.Second)))

	assert.Equal(t, JobCompleted, job.Status)
	assert.Equal(t, 90*time.Second, job.ProcessingDuration)
}

func TestJob_MarkCompleted_RequiresProcessing(t *testing.T) {
	job := newTestJob(t, 120)
	err := job.MarkCompleted(time.Now())
	assert.ErrorIs(t, err, shared.ErrStateTransition)
}

func TestJob_MarkFailed_RetriesThenTerminal(t *testing.T) {
	job := newTestJob(t, 120)
	now := time.Now()

	require.NoError(t, job.MarkProcessing(now))
	require.NoError(t, job.MarkFailed("snapshot load failed", now))
	assert.Equal(t, JobPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)

	require.NoError(t, job.MarkProcessing(now))
	require.NoError(t, job.MarkFailed("snapshot load failed", now))
	require.NoError(t, job.MarkProcessing(now))
	require.NoError(t, job.MarkFailed("snapshot load failed", now))

	assert.Equal(t, JobFailed, job.Status)
	assert.Equal(t, MaxRetries, job.RetryCount)

	// terminal jobs reject further transitions
	assert.ErrorIs(t, job.MarkFailed("again", now), shared.ErrStateTransition)
	assert.ErrorIs(t, job.MarkProcessing(now), shared.ErrStateTransition)
}

func TestJob_BatchCursorAndCompletion(t *testing.T) {
	job := newTestJob(t, 120)
	now := time.Now()
	require.NoError(t, job.MarkProcessing(now))

	assert.False(t, job.IsComplete())
	job.AdvanceBatch(now)
	job.AdvanceBatch(now)
	assert.False(t, job.IsComplete())
	job.AdvanceBatch(now)
	assert.True(t, job.IsComplete())
	assert.InDelta(t, 100.0, job.Progress(), 0.01)
}

func TestJob_RecordStats(t *testing.T) {
	job := newTestJob(t, 120)
	now := time.Now()

	job.RecordSuccess(TierChampion)
	job.RecordSuccess(TierElite)
	job.RecordSuccess(TierElite)
	job.RecordFailure(42, "deadlock", now)

	assert.Equal(t, 3, job.ProcessedUsers)
	assert.Equal(t, 1, job.FailedUsers)
	assert.Equal(t, 1, job.TierStats[TierChampion])
	assert.Equal(t, 2, job.TierStats[TierElite])
	require.Len(t, job.ErrorLog, 1)
	assert.Equal(t, int64(42), job.ErrorLog[0].UserID)
}
