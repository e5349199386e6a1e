package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

func seedJob(t *testing.T, jobs *memory.RewardJobRepository, id string, month int) *reward.Job {
	t.Helper()

	period, err := timeutil.NewPeriod(month, 2025)
	require.NoError(t, err)
	job, err := reward.NewJob(reward.NewJobParams{
		ID:         id,
		Category:   ranking.CategoryStudents,
		Period:     period,
		SnapshotID: "snapshot-" + id,
		TotalUsers: 120,
		BatchSize:  50,
	})
	require.NoError(t, err)
	require.NoError(t, jobs.Create(context.Background(), job))
	return job
}

func TestJobStatusCountsAndRecent(t *testing.T) {
	jobs := memory.NewRewardJobRepository()
	seedJob(t, jobs, "job-jan", 1)
	seedJob(t, jobs, "job-feb", 2)

	handler := NewJobStatusHandler(jobs)

	result, err := handler.Handle(context.Background(), JobStatusQuery{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Counts[reward.JobPending])
	assert.Zero(t, result.Counts[reward.JobCompleted])
	require.Len(t, result.Recent, 2)

	for _, summary := range result.Recent {
		assert.Equal(t, reward.JobPending, summary.Status)
		assert.Equal(t, 3, summary.TotalBatches)
		assert.Zero(t, summary.ProcessedUsers)
	}
}

func TestJobStatusLimit(t *testing.T) {
	jobs := memory.NewRewardJobRepository()
	seedJob(t, jobs, "job-jan", 1)
	seedJob(t, jobs, "job-feb", 2)
	seedJob(t, jobs, "job-mar", 3)

	handler := NewJobStatusHandler(jobs)

	result, err := handler.Handle(context.Background(), JobStatusQuery{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Recent, 2)
}

func TestJobStatusEmpty(t *testing.T) {
	handler := NewJobStatusHandler(memory.NewRewardJobRepository())

	result, err := handler.Handle(context.Background(), JobStatusQuery{})
	require.NoError(t, err)
	assert.Empty(t, result.Recent)
	assert.Empty(t, result.Counts)
}
