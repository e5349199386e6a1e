package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quizhub/rewards-hub/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// INIT CHECK JOB
// ══════════════════════════════════════════════════════════════════════════════

// InitCheckJob initializes the previous month's reward cycle if it has
// not been initialized yet. Initialization is idempotent, so running the
// check every hour only does real work on the first tick after a month
// rollover.
type InitCheckJob struct {
	handler *command.InitMonthHandler
	logger  *slog.Logger
	config  InitCheckConfig
}

// InitCheckConfig contains configuration for the init check job.
type InitCheckConfig struct {
	// Timeout is the maximum duration for one check.
	Timeout time.Duration
}

// DefaultInitCheckConfig returns sensible defaults.
func DefaultInitCheckConfig() InitCheckConfig {
	return InitCheckConfig{
		Timeout: time.Minute,
	}
}

// NewInitCheckJob creates a new init check job.
func NewInitCheckJob(handler *command.InitMonthHandler, logger *slog.Logger, config InitCheckConfig) *InitCheckJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultInitCheckConfig().Timeout
	}

	return &InitCheckJob{
		handler: handler,
		logger:  logger,
		config:  config,
	}
}

// Name returns the job name.
func (j *InitCheckJob) Name() string {
	return "init_check"
}

// Description returns a human-readable description.
func (j *InitCheckJob) Description() string {
	return "Initializes the previous month's reward cycle after rollover"
}

// Run ensures the previous period has snapshots and jobs.
func (j *InitCheckJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	result, err := j.handler.Handle(ctx, command.InitMonthCommand{})
	if err != nil {
		return fmt.Errorf("init check: %w", err)
	}

	created := 0
	var failures []string
	for _, c := range result.Categories {
		if c.SnapshotCreated || c.JobCreated {
			created++
		}
		if c.Error != "" {
			failures = append(failures, fmt.Sprintf("%s: %s", c.Category, c.Error))
		}
	}

	if created > 0 {
		j.logger.Info("reward cycle initialized",
			"month", result.Month,
			"year", result.Year,
			"categories_initialized", created,
		)
	} else {
		j.logger.Debug("reward cycle already initialized",
			"month", result.Month,
			"year", result.Year,
		)
	}

	if len(failures) > 0 {
		return fmt.Errorf("init check: %s", strings.Join(failures, "; "))
	}

	return nil
}
