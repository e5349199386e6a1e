// Package command contains write operations (CQRS - Commands).
// Commands drive the monthly reward pipeline: initializing the period
// and advancing reward jobs batch by batch.
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
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INIT MONTH COMMAND
// Freezes the previous month's rankings and queues the reward jobs.
// ══════════════════════════════════════════════════════════════════════════════

// InitMonthCommand contains the data needed to initialize a reward period.
type InitMonthCommand struct {
	// Month and Year select the reward period. When both are zero the
	// previous calendar month is used (January rolls back to December
	// of the prior year).
	Month int
	Year  int

	// Categories limits initialization to the given categories.
	// Empty means all categories.
	Categories []ranking.Category

	// BatchSize overrides the default job batch size (0 = default).
	BatchSize int
}

// Validate validates the command.
func (c InitMonthCommand) Validate() error {
	if (c.Month == 0) != (c.Year == 0) {
		return errors.New("init_month: month and year must be provided together")
	}
	if c.Month != 0 {
		if _, err := timeutil.NewPeriod(c.Month, c.Year); err != nil {
			return fmt.Errorf("init_month: %w", err)
		}
	}
	for _, category := range c.Categories {
		if !category.IsValid() {
			return fmt.Errorf("init_month: unknown category %q", category)
		}
	}
	return nil
}

// CategoryInit reports what initialization did for one category.
type CategoryInit struct {
	Category         ranking.Category `json:"category"`
	SnapshotID       string           `json:"snapshot_id,omitempty"`
	JobID            string           `json:"job_id,omitempty"`
	TotalUsers       int              `json:"total_users"`
	TotalBatches     int              `json:"total_batches"`
	SnapshotCreated  bool             `json:"snapshot_created"`
	JobCreated       bool             `json:"job_created"`
	AlreadyCompleted bool             `json:"already_completed"`
	Error            string           `json:"error,omitempty"`
}

// InitMonthResult contains the result of period initialization.
type InitMonthResult struct {
	Month      int            `json:"month"`
	Year       int            `json:"year"`
	Categories []CategoryInit `json:"categories"`
}

// Failed reports whether every category errored.
func (r *InitMonthResult) Failed() bool {
	if len(r.Categories) == 0 {
		return true
	}
	for _, c := range r.Categories {
		if c.Error == "" {
			return false
		}
	}
	return true
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// InitMonthHandler handles the InitMonthCommand.
type InitMonthHandler struct {
	entries   ranking.EntrySource
	snapshots ranking.SnapshotRepository
	jobs      reward.JobRepository
	publisher shared.EventPublisher
	log       *logger.Logger

	batchSize int
	now       func() time.Time
	newID     func() string
}

// InitMonthHandlerConfig contains configuration for the handler.
type InitMonthHandlerConfig struct {
	// BatchSize is the job batch size (0 = reward.DefaultBatchSize).
	BatchSize int
}

// NewInitMonthHandler creates a new InitMonthHandler.
func NewInitMonthHandler(
	entries ranking.EntrySource,
	snapshots ranking.SnapshotRepository,
	jobs reward.JobRepository,
	publisher shared.EventPublisher,
	log *logger.Logger,
	config InitMonthHandlerConfig,
) *InitMonthHandler {
	batchSize := config.BatchSize
	if batchSize <= 0 {
		batchSize = reward.DefaultBatchSize
	}

	return &InitMonthHandler{
		entries:   entries,
		snapshots: snapshots,
		jobs:      jobs,
		publisher: publisher,
		log:       log,
		batchSize: batchSize,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
}

// Handle initializes the reward period for each requested category.
// A failure in one category is reported in its result entry and does
// not abort the others.
func (h *InitMonthHandler) Handle(ctx context.Context, cmd InitMonthCommand) (*InitMonthResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	period := timeutil.PreviousPeriod(h.now())
	if cmd.Month != 0 {
		var err error
		period, err = timeutil.NewPeriod(cmd.Month, cmd.Year)
		if err != nil {
			return nil, fmt.Errorf("init_month: %w", err)
		}
	}

	categories := cmd.Categories
	if len(categories) == 0 {
		categories = ranking.AllCategories
	}

	result := &InitMonthResult{Month: period.Month, Year: period.Year}
	for _, category := range categories {
		init := h.initCategory(ctx, category, period, cmd.BatchSize)
		if init.Error != "" {
			h.log.Error("category init failed",
				logger.Category(string(category)),
				logger.PeriodKey(period.Key()),
				logger.String("error", init.Error),
			)
		} else {
			h.log.Info("category initialized",
				logger.Category(string(category)),
				logger.PeriodKey(period.Key()),
				logger.SnapshotID(init.SnapshotID),
				logger.JobID(init.JobID),
				logger.Int("total_users", init.TotalUsers),
			)
		}
		result.Categories = append(result.Categories, init)
	}

	return result, nil
}

// initCategory builds or reuses the snapshot, then finds or creates the
// job. Both sides are idempotent: the unique period constraints turn a
// concurrent double init into a reuse.
func (h *InitMonthHandler) initCategory(ctx context.Context, category ranking.Category, period timeutil.Period, batchSize int) CategoryInit {
	init := CategoryInit{Category: category}

	snapshot, created, err := h.findOrBuildSnapshot(ctx, category, period)
	if err != nil {
		init.Error = err.Error()
		return init
	}
	init.SnapshotID = snapshot.ID
	init.SnapshotCreated = created
	init.TotalUsers = snapshot.TotalUsers

	if created && h.publisher != nil {
		_ = h.publisher.Publish(shared.NewSnapshotCreatedEvent(
			snapshot.ID, string(category), period.Month, period.Year, snapshot.TotalUsers,
		))
	}

	job, jobCreated, err := h.findOrCreateJob(ctx, category, period, snapshot, batchSize)
	if err != nil {
		init.Error = err.Error()
		return init
	}
	init.JobID = job.ID
	init.JobCreated = jobCreated
	init.TotalBatches = job.TotalBatches
	init.AlreadyCompleted = job.Status == reward.JobCompleted

	return init
}

func (h *InitMonthHandler) findOrBuildSnapshot(ctx context.Context, category ranking.Category, period timeutil.Period) (*ranking.Snapshot, bool, error) {
	snapshot, err := h.snapshots.FindByPeriod(ctx, category, period.Month, period.Year)
	if err == nil {
		return snapshot, false, nil
	}
	if !shared.IsNotFound(err) {
		return nil, false, fmt.Errorf("find snapshot: %w", err)
	}

	entries, err := h.entries.LiveEntries(ctx, category)
	if err != nil {
		return nil, false, fmt.Errorf("rank users: %w", err)
	}

	snapshot, err = ranking.NewSnapshot(h.newID(), category, period, entries)
	if err != nil {
		return nil, false, err
	}

	if err := h.snapshots.Save(ctx, snapshot); err != nil {
		// A concurrent init won the race; use its snapshot.
		if errors.Is(err, shared.ErrSnapshotExists) {
			existing, findErr := h.snapshots.FindByPeriod(ctx, category, period.Month, period.Year)
			if findErr != nil {
				return nil, false, fmt.Errorf("find concurrent snapshot: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("save snapshot: %w", err)
	}

	return snapshot, true, nil
}

func (h *InitMonthHandler) findOrCreateJob(ctx context.Context, category ranking.Category, period timeutil.Period, snapshot *ranking.Snapshot, batchSize int) (*reward.Job, bool, error) {
	job, err := h.jobs.FindByPeriod(ctx, category, period.Month, period.Year)
	if err == nil {
		return job, false, nil
	}
	if !shared.IsNotFound(err) {
		return nil, false, fmt.Errorf("find job: %w", err)
	}

	if batchSize <= 0 {
		batchSize = h.batchSize
	}

	job, err = reward.NewJob(reward.NewJobParams{
		ID:         h.newID(),
		Category:   category,
		Period:     period,
		SnapshotID: snapshot.ID,
		BatchSize:  batchSize,
		TotalUsers: snapshot.TotalUsers,
	})
	if err != nil {
		return nil, false, err
	}

	if err := h.jobs.Create(ctx, job); err != nil {
		if shared.IsAlreadyExists(err) {
			existing, findErr := h.jobs.FindByPeriod(ctx, category, period.Month, period.Year)
			if findErr != nil {
				return nil, false, fmt.Errorf("find concurrent job: %w", findErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("create job: %w", err)
	}

	return job, true, nil
}
