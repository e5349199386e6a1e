package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
	"github.com/quizhub/rewards-hub/pkg/logger"
)

// pipeline bundles the in-memory infrastructure one reward run needs.
type pipeline struct {
	users     *memory.UserRepository
	snapshots *memory.SnapshotRepository
	jobs      *memory.RewardJobRepository
	ledger    *memory.RewardLedger

	init    *InitMonthHandler
	process *ProcessJobsHandler
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	p := &pipeline{
		users:     memory.NewUserRepository(),
		snapshots: memory.NewSnapshotRepository(),
		jobs:      memory.NewRewardJobRepository(),
	}
	p.ledger = memory.NewRewardLedger(p.users)

	log := quietLogger()
	p.init = NewInitMonthHandler(p.users, p.snapshots, p.jobs, nil, log, InitMonthHandlerConfig{})
	p.process = NewProcessJobsHandler(p.jobs, p.snapshots, p.ledger, reward.DefaultPlan(), nil, log, ProcessJobsHandlerConfig{})
	return p
}

// seedStudents adds n active students whose scores strictly decrease
// with the user ID, so user 1 is rank 1.
func (p *pipeline) seedStudents(t *testing.T, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		u, err := user.NewUser(user.NewUserParams{
			ID:          int64(i),
			DisplayName: fmt.Sprintf("student-%d", i),
			Role:        user.RoleStudent,
		})
		require.NoError(t, err)
		u.Student.TotalTests = n - i + 1
		p.users.Add(u)
	}
}

func (p *pipeline) initPeriod(t *testing.T) *InitMonthResult {
	t.Helper()
	result, err := p.init.Handle(context.Background(), InitMonthCommand{
		Month:      2,
		Year:       2025,
		Categories: []ranking.Category{ranking.CategoryStudents},
	})
	require.NoError(t, err)
	require.False(t, result.Failed())
	return result
}

// ─────────────────────────────────────────────────────────────────────────────
// END TO END
// ─────────────────────────────────────────────────────────────────────────────

func TestProcessRun120Students(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 120)
	initResult := p.initPeriod(t)

	require.Len(t, initResult.Categories, 1)
	assert.Equal(t, 120, initResult.Categories[0].TotalUsers)
	assert.Equal(t, 3, initResult.Categories[0].TotalBatches)

	ctx := context.Background()

	// Three batches of 50/50/20: the third pass finishes the job.
	for call := 1; call <= 3; call++ {
		result, err := p.process.Handle(ctx, ProcessJobsCommand{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Claimed, "call %d should claim the job", call)
		if call < 3 {
			assert.Zero(t, result.Completed, "call %d should not complete yet", call)
		} else {
			assert.Equal(t, 1, result.Completed)
		}
	}

	job, err := p.jobs.GetByID(ctx, initResult.Categories[0].JobID)
	require.NoError(t, err)
	assert.Equal(t, reward.JobCompleted, job.Status)
	assert.Equal(t, 120, job.ProcessedUsers)
	assert.Zero(t, job.FailedUsers)
	assert.Equal(t, 3, job.CurrentBatch)

	// Tier distribution over dense ranks 1..120.
	assert.Equal(t, 1, job.TierStats[reward.TierChampion])
	assert.Equal(t, 9, job.TierStats[reward.TierElite])
	assert.Equal(t, 40, job.TierStats[reward.TierAchiever])
	assert.Equal(t, 50, job.TierStats[reward.TierPerformer])
	assert.Equal(t, 20, job.TierStats[reward.TierUnplaced])

	// Rank 1 got the champion payout; rank 105 got an UNPLACED record.
	champion, err := p.users.GetByID(ctx, 1)
	require.NoError(t, err)
	plan := reward.DefaultPlan()
	assert.Equal(t, plan[reward.TierChampion].Coins, champion.Coins)
	assert.Len(t, champion.Badges, 1)

	history, err := p.ledger.HistoryByUser(ctx, 105, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, reward.TierUnplaced, history[0].Tier)
	assert.Equal(t, 105, history[0].Rank)
	assert.Empty(t, history[0].Badge, "UNPLACED carries no badge")

	// Snapshot is consumed.
	snapshot, err := p.snapshots.GetByID(ctx, initResult.Categories[0].SnapshotID)
	require.NoError(t, err)
	assert.True(t, snapshot.Processed)

	// A further pass has nothing to do.
	result, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)
}

func TestProcessRunIsIdempotent(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 10)
	p.initPeriod(t)

	ctx := context.Background()
	result, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	require.Equal(t, 1, result.Completed)

	u, err := p.users.GetByID(ctx, 1)
	require.NoError(t, err)
	coinsAfterFirst := u.Coins

	// Re-initializing and re-processing the same period must not pay twice.
	initResult := p.initPeriod(t)
	assert.False(t, initResult.Categories[0].SnapshotCreated)
	assert.False(t, initResult.Categories[0].JobCreated)
	assert.True(t, initResult.Categories[0].AlreadyCompleted)

	result, err = p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)

	u, err = p.users.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, coinsAfterFirst, u.Coins)
	assert.Equal(t, 10, p.ledger.RecordCount())
}

// ─────────────────────────────────────────────────────────────────────────────
// RESUMABILITY
// ─────────────────────────────────────────────────────────────────────────────

func TestProcessResumesAfterAbandonedLease(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 120)
	initResult := p.initPeriod(t)
	jobID := initResult.Categories[0].JobID

	ctx := context.Background()

	// First pass advances one batch.
	_, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)

	// Simulate a worker dying mid-run: the job sits in processing with a
	// fresh lease. A pass inside the staleness window must not touch it.
	crashed, err := p.jobs.Claim(ctx, jobID, reward.DefaultStaleness)
	require.NoError(t, err)
	require.Equal(t, 1, crashed.CurrentBatch)

	result, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	assert.Zero(t, result.Claimed, "fresh lease must block other workers")

	// Once the lease goes stale the job resumes from batch 1, not batch 0.
	now := time.Now()
	p.jobs.SetClock(func() time.Time { return now.Add(reward.DefaultStaleness + time.Minute) })

	for i := 0; i < 2; i++ {
		result, err = p.process.Handle(ctx, ProcessJobsCommand{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Claimed)
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, reward.JobCompleted, job.Status)
	assert.Equal(t, 120, job.ProcessedUsers)
	assert.Equal(t, 120, p.ledger.RecordCount(), "no user paid twice across the resume")
}

// ─────────────────────────────────────────────────────────────────────────────
// FAILURE HANDLING
// ─────────────────────────────────────────────────────────────────────────────

func TestProcessRecordsPerUserFailures(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 10)
	p.initPeriod(t)

	p.ledger.FailFor = map[int64]error{
		3: shared.ErrUserNotFound,
		7: shared.ErrUserNotFound,
	}

	ctx := context.Background()
	result, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)

	progress := result.Jobs[0]
	assert.Equal(t, reward.JobCompleted, progress.Status)
	assert.Equal(t, 8, progress.ProcessedUsers)
	assert.Equal(t, 2, progress.FailedUsers)

	job, err := p.jobs.GetByID(ctx, progress.JobID)
	require.NoError(t, err)
	require.Len(t, job.ErrorLog, 2)
	assert.Equal(t, int64(3), job.ErrorLog[0].UserID)
	assert.Equal(t, int64(7), job.ErrorLog[1].UserID)
}

func TestProcessMissingSnapshotRetriesThenFails(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 10)
	initResult := p.initPeriod(t)
	jobID := initResult.Categories[0].JobID

	ctx := context.Background()

	// Point the job at a snapshot that does not exist.
	job, err := p.jobs.GetByID(ctx, jobID)
	require.NoError(t, err)
	job.SnapshotID = "missing-snapshot"
	require.NoError(t, p.jobs.Update(ctx, job))

	for attempt := 1; attempt <= reward.MaxRetries; attempt++ {
		result, err := p.process.Handle(ctx, ProcessJobsCommand{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Claimed, "attempt %d", attempt)

		job, err = p.jobs.GetByID(ctx, jobID)
		require.NoError(t, err)
		assert.Equal(t, attempt, job.RetryCount)
		if attempt < reward.MaxRetries {
			assert.Equal(t, reward.JobPending, job.Status)
		}
	}

	assert.Equal(t, reward.JobFailed, job.Status)
	assert.NotEmpty(t, job.LastError)

	// Terminal: nothing left to claim.
	result, err := p.process.Handle(ctx, ProcessJobsCommand{})
	require.NoError(t, err)
	assert.Zero(t, result.Claimed)
}

func TestProcessBudgetStopsSchedulingJobs(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 10)

	// Two categories, two jobs (teachers category has zero users but
	// still gets a job-less snapshot; seed a teacher so both exist).
	teacher, err := user.NewUser(user.NewUserParams{ID: 500, DisplayName: "t", Role: user.RoleTeacher})
	require.NoError(t, err)
	teacher.Teacher.TestsCreated = 3
	p.users.Add(teacher)

	result, err := p.init.Handle(context.Background(), InitMonthCommand{Month: 2, Year: 2025})
	require.NoError(t, err)
	require.False(t, result.Failed())

	// A 1ns budget is exhausted before the first deadline check, so the
	// pass stops scheduling jobs almost immediately.
	processResult, err := p.process.Handle(context.Background(), ProcessJobsCommand{Budget: time.Nanosecond})
	require.NoError(t, err)
	assert.LessOrEqual(t, processResult.Claimed, 1)
	assert.True(t, processResult.BudgetExceeded)
}

func TestAwardRetriesTransientErrors(t *testing.T) {
	p := newPipeline(t)
	p.seedStudents(t, 1)
	p.initPeriod(t)

	// Transient failure: not wrapped as user-not-found, so the retrier
	// retries and eventually gives up, recording a per-user failure.
	p.ledger.FailFor = map[int64]error{1: errors.New("connection reset")}

	result, err := p.process.Handle(context.Background(), ProcessJobsCommand{})
	require.NoError(t, err)
	require.Len(t, result.Jobs, 1)
	assert.Equal(t, 1, result.Jobs[0].FailedUsers)
}
