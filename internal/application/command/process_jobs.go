package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/pkg/logger"
	"github.com/quizhub/rewards-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS JOBS COMMAND
// Advances every claimable reward job by one batch, inside a wall-clock
// budget. Designed to be triggered repeatedly (cron or scheduler); all
// resume state lives in the job records, so any invocation can pick up
// where the previous one stopped.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultProcessBudget bounds one process invocation.
const DefaultProcessBudget = 25 * time.Second

// ProcessJobsCommand contains the data needed to run a process pass.
type ProcessJobsCommand struct {
	// Budget is the wall-clock budget for this pass (0 = DefaultProcessBudget).
	Budget time.Duration

	// Staleness is the soft-lease window (0 = reward.DefaultStaleness).
	Staleness time.Duration
}

// JobProgress reports what one pass did to one job.
type JobProgress struct {
	JobID          string           `json:"job_id"`
	Category       ranking.Category `json:"category"`
	Status         reward.JobStatus `json:"status"`
	CurrentBatch   int              `json:"current_batch"`
	TotalBatches   int              `json:"total_batches"`
	ProcessedUsers int              `json:"processed_users"`
	FailedUsers    int              `json:"failed_users"`
	Progress       float64          `json:"progress"`
	Error          string           `json:"error,omitempty"`
}

// ProcessJobsResult contains the result of one process pass.
type ProcessJobsResult struct {
	Claimed        int           `json:"claimed"`
	Completed      int           `json:"completed"`
	Failed         int           `json:"failed"`
	BudgetExceeded bool          `json:"budget_exceeded"`
	Elapsed        time.Duration `json:"elapsed"`
	Jobs           []JobProgress `json:"jobs"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ProcessJobsHandler handles the ProcessJobsCommand.
type ProcessJobsHandler struct {
	jobs      reward.JobRepository
	snapshots ranking.SnapshotRepository
	ledger    reward.Ledger
	plan      reward.Plan
	publisher shared.EventPublisher
	log       *logger.Logger
	retrier   *retry.Retrier

	budget    time.Duration
	staleness time.Duration
	now       func() time.Time
	newID     func() string
}

// ProcessJobsHandlerConfig contains configuration for the handler.
type ProcessJobsHandlerConfig struct {
	// Budget is the default wall-clock budget (0 = DefaultProcessBudget).
	Budget time.Duration

	// Staleness is the default soft-lease window (0 = reward.DefaultStaleness).
	Staleness time.Duration
}

// NewProcessJobsHandler creates a new ProcessJobsHandler.
func NewProcessJobsHandler(
	jobs reward.JobRepository,
	snapshots ranking.SnapshotRepository,
	ledger reward.Ledger,
	plan reward.Plan,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config ProcessJobsHandlerConfig,
) *ProcessJobsHandler {
	budget := config.Budget
	if budget <= 0 {
		budget = DefaultProcessBudget
	}
	staleness := config.Staleness
	if staleness <= 0 {
		staleness = reward.DefaultStaleness
	}

	return &ProcessJobsHandler{
		jobs:      jobs,
		snapshots: snapshots,
		ledger:    ledger,
		plan:      plan,
		publisher: publisher,
		log:       log,
		retrier:   retry.AwardRetrier(),
		budget:    budget,
		staleness: staleness,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Handle runs one process pass: claim each job with pending work and
// advance it by one batch. Jobs left over when the budget runs out are
// picked up by the next pass.
func (h *ProcessJobsHandler) Handle(ctx context.Context, cmd ProcessJobsCommand) (*ProcessJobsResult, error) {
	budget := cmd.Budget
	if budget <= 0 {
		budget = h.budget
	}
	staleness := cmd.Staleness
	if staleness <= 0 {
		staleness = h.staleness
	}

	start := h.now()
	deadline := start.Add(budget)

	claimable, err := h.jobs.ListClaimable(ctx, staleness)
	if err != nil {
		return nil, fmt.Errorf("process_jobs: list claimable: %w", err)
	}

	result := &ProcessJobsResult{}
	for _, candidate := range claimable {
		if h.now().After(deadline) {
			result.BudgetExceeded = true
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		job, err := h.jobs.Claim(ctx, candidate.ID, staleness)
		if errors.Is(err, shared.ErrJobNotClaimed) {
			// Another worker took the lease between list and claim.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("process_jobs: claim %s: %w", candidate.ID, err)
		}
		result.Claimed++

		progress := h.advanceJob(ctx, job)
		switch progress.Status {
		case reward.JobCompleted:
			result.Completed++
		case reward.JobFailed:
			result.Failed++
		}
		result.Jobs = append(result.Jobs, progress)
	}

	result.Elapsed = h.now().Sub(start)
	return result, nil
}

// advanceJob moves one claimed job forward by one batch and persists the
// outcome. Per-user failures land in the job's error log; only snapshot
// loading counts as a job-level failure.
func (h *ProcessJobsHandler) advanceJob(ctx context.Context, job *reward.Job) JobProgress {
	snapshot, err := h.snapshots.GetByID(ctx, job.SnapshotID)
	if err != nil {
		return h.failJob(ctx, job, fmt.Sprintf("load snapshot %s: %v", job.SnapshotID, err))
	}

	batch := snapshot.Batch(job.CurrentBatch, job.BatchSize)
	if len(batch) > 0 {
		h.awardBatch(ctx, job, batch)
		job.AdvanceBatch(h.now())
	}

	// Past the last batch (or the snapshot was empty): finalize.
	if len(batch) == 0 || job.IsComplete() {
		return h.completeJob(ctx, job, snapshot)
	}

	if err := job.Release(h.now()); err != nil {
		return h.failJob(ctx, job, fmt.Sprintf("release job: %v", err))
	}
	if err := h.jobs.Update(ctx, job); err != nil {
		h.log.Error("failed to persist job progress", logger.JobID(job.ID), logger.Err(err))
		return h.progressOf(job, err.Error())
	}

	h.log.Info("job advanced",
		logger.JobID(job.ID),
		logger.Category(string(job.Category)),
		logger.Batch(job.CurrentBatch),
		logger.Int("total_batches", job.TotalBatches),
		logger.Int("processed_users", job.ProcessedUsers),
	)
	return h.progressOf(job, "")
}

// awardBatch resolves the tier and awards every entry in the batch.
func (h *ProcessJobsHandler) awardBatch(ctx context.Context, job *reward.Job, batch []ranking.Entry) {
	for _, entry := range batch {
		tier := reward.ResolveTier(entry.Rank)
		payout := h.plan.Payout(tier)

		record, err := reward.NewRecord(h.newID(), entry, job.Category, job.Month, job.Year, tier, payout)
		if err != nil {
			job.RecordFailure(entry.UserID, err.Error(), h.now())
			continue
		}

		awardResult, err := h.award(ctx, record)
		if err != nil {
			job.RecordFailure(entry.UserID, err.Error(), h.now())
			continue
		}

		// Granted=false means a previous run already paid this user for
		// the period. On resume that is the expected path, so it still
		// counts as processed.
		job.RecordSuccess(tier)

		if awardResult.Granted && h.publisher != nil {
			_ = h.publisher.Publish(shared.NewRewardGrantedEvent(
				record.ID, record.UserID, string(record.Category),
				record.Month, record.Year, record.Rank,
				string(record.Tier), record.Coins, record.XP, record.Badge,
			))
		}
	}
}

// award writes one ledger record, retrying transient failures with short
// backoff. Unknown users and invalid records are permanent.
func (h *ProcessJobsHandler) award(ctx context.Context, record *reward.Record) (reward.AwardResult, error) {
	var result reward.AwardResult
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		var awardErr error
		result, awardErr = h.ledger.Award(ctx, record)
		if awardErr == nil {
			return nil
		}
		if errors.Is(awardErr, shared.ErrUserNotFound) || shared.IsValidation(awardErr) {
			return retry.Permanent(awardErr)
		}
		return retry.Retryable(awardErr)
	})
	return result, err
}

// completeJob marks the job completed and the snapshot processed.
func (h *ProcessJobsHandler) completeJob(ctx context.Context, job *reward.Job, snapshot *ranking.Snapshot) JobProgress {
	if err := job.MarkCompleted(h.now()); err != nil {
		return h.failJob(ctx, job, fmt.Sprintf("complete job: %v", err))
	}
	if err := h.jobs.Update(ctx, job); err != nil {
		h.log.Error("failed to persist completed job", logger.JobID(job.ID), logger.Err(err))
		return h.progressOf(job, err.Error())
	}

	if err := h.snapshots.MarkProcessed(ctx, snapshot.ID); err != nil {
		h.log.Error("failed to mark snapshot processed",
			logger.SnapshotID(snapshot.ID), logger.Err(err))
	}

	if h.publisher != nil {
		_ = h.publisher.Publish(shared.NewJobCompletedEvent(
			job.ID, string(job.Category), job.Month, job.Year,
			job.ProcessedUsers, job.FailedUsers, job.ProcessingDuration,
		))
	}

	h.log.Info("job completed",
		logger.JobID(job.ID),
		logger.Category(string(job.Category)),
		logger.Int("processed_users", job.ProcessedUsers),
		logger.Int("failed_users", job.FailedUsers),
		logger.Latency(job.ProcessingDuration),
	)
	return h.progressOf(job, "")
}

// failJob records a job-level failure; below the retry cap the job goes
// back to pending for a later pass.
func (h *ProcessJobsHandler) failJob(ctx context.Context, job *reward.Job, reason string) JobProgress {
	if err := job.MarkFailed(reason, h.now()); err != nil {
		h.log.Error("failed to mark job failed", logger.JobID(job.ID), logger.Err(err))
		return h.progressOf(job, reason)
	}
	if err := h.jobs.Update(ctx, job); err != nil {
		h.log.Error("failed to persist failed job", logger.JobID(job.ID), logger.Err(err))
	}

	if job.Status == reward.JobFailed && h.publisher != nil {
		_ = h.publisher.Publish(shared.NewJobFailedEvent(
			job.ID, string(job.Category), job.Month, job.Year,
			job.RetryCount, job.LastError,
		))
	}

	h.log.Error("job failed",
		logger.JobID(job.ID),
		logger.Category(string(job.Category)),
		logger.Int("retry_count", job.RetryCount),
		logger.String("reason", reason),
	)
	return h.progressOf(job, reason)
}

func (h *ProcessJobsHandler) progressOf(job *reward.Job, errMsg string) JobProgress {
	return JobProgress{
		JobID:          job.ID,
		Category:       job.Category,
		Status:         job.Status,
		CurrentBatch:   job.CurrentBatch,
		TotalBatches:   job.TotalBatches,
		ProcessedUsers: job.ProcessedUsers,
		FailedUsers:    job.FailedUsers,
		Progress:       job.Progress(),
		Error:          errMsg,
	}
}
