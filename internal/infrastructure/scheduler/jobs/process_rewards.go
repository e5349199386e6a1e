// Package jobs contains the scheduled jobs that drive the reward
// pipeline when the in-process scheduler is enabled.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quizhub/rewards-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROCESS REWARDS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ProcessRewardsJob advances claimable reward jobs one batch at a time.
// Each tick claims whatever work is pending and stops at the wall-clock
// budget, so a large month drains over successive ticks.
type ProcessRewardsJob struct {
	handler *command.ProcessJobsHandler
	logger  *slog.Logger
	config  ProcessRewardsConfig
}

// ProcessRewardsConfig contains configuration for the process job.
type ProcessRewardsConfig struct {
	// Timeout is the maximum duration for one tick.
	Timeout time.Duration
}

// DefaultProcessRewardsConfig returns sensible defaults.
func DefaultProcessRewardsConfig() ProcessRewardsConfig {
	return ProcessRewardsConfig{
		Timeout: 5 * time.Minute,
	}
}

// NewProcessRewardsJob creates a new process rewards job.
func NewProcessRewardsJob(handler *command.ProcessJobsHandler, logger *slog.Logger, config ProcessRewardsConfig) *ProcessRewardsJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultProcessRewardsConfig().Timeout
	}

	return &ProcessRewardsJob{
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *ProcessRewardsJob) Name() string {
	return "process_rewards"
}

// Description returns a human-readable description.
func (j *ProcessRewardsJob) Description() string {
	return "Advances pending reward jobs batch by batch"
}

// Run executes one processing pass.
func (j *ProcessRewardsJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.ProcessJobsCommand{})
	if err != nil {
		return fmt.Errorf("process rewards: %w", err)
	}

	if result.Claimed == 0 {
		j.logger.Debug("no claimable reward jobs")
		return nil
	}

	j.logger.Info("reward processing pass finished",
		"claimed", result.Claimed,
		"completed", result.Completed,
		"failed", result.Failed,
		"budget_exceeded", result.BudgetExceeded,
		"elapsed", result.Elapsed.String(),
	)

	if result.Failed > 0 {
		return fmt.Errorf("process rewards: %d job(s) failed this pass", result.Failed)
	}

	return nil
}
