package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name string
	runs atomic.Int64
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counting job" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	return j.err
}

func newTestScheduler() *Scheduler {
	return NewScheduler(SchedulerConfig{
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		EnableMetrics: true,
	})
}

func TestIntervalScheduleNext(t *testing.T) {
	schedule := NewIntervalSchedule(90 * time.Second)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(90*time.Second), schedule.Next(base))
	assert.Equal(t, "@every 1m30s", schedule.String())
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "process_rewards"}

	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Minute)))
	assert.ErrorIs(t, s.Register(job, NewIntervalSchedule(time.Minute)), ErrJobAlreadyExists)
}

func TestRunNowExecutesAndRecords(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "init_check"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "init_check")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(1), job.runs.Load())

	snapshot := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalExecutions)
	assert.Equal(t, int64(1), snapshot.TotalSuccesses)
}

func TestRunNowPropagatesJobError(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "init_check", err: errors.New("ranking query timed out")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "init_check")
	require.Error(t, err)
	assert.False(t, result.Success)

	snapshot := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalFailures)
}

func TestRunNowUnknownJob(t *testing.T) {
	s := newTestScheduler()

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStartStopLifecycle(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&countingJob{name: "process_rewards"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestListJobs(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.Register(&countingJob{name: "process_rewards"}, NewIntervalSchedule(90*time.Second)))
	require.NoError(t, s.Register(&countingJob{name: "init_check"}, NewIntervalSchedule(time.Hour)))

	infos := s.ListJobs()
	require.Len(t, infos, 2)
	for _, info := range infos {
		assert.True(t, info.Enabled)
		assert.False(t, info.NextRun.IsZero())
	}

	require.NoError(t, s.DisableJob("init_check"))
	for _, info := range s.ListJobs() {
		if info.Name == "init_check" {
			assert.False(t, info.Enabled)
		}
	}
}
