// Package query contains read operations (CQRS - Queries).
// Queries never mutate state; they assemble views over the reward
// pipeline for the HTTP and CLI surfaces.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB STATUS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecentJobs bounds the recent-job list on the status view.
const DefaultRecentJobs = 20

// JobStatusQuery contains parameters for the status view.
type JobStatusQuery struct {
	// Limit bounds the recent-job list (0 = DefaultRecentJobs).
	Limit int
}

// JobSummary is one job on the status view.
type JobSummary struct {
	ID             string              `json:"id"`
	Category       ranking.Category    `json:"category"`
	Month          int                 `json:"month"`
	Year           int                 `json:"year"`
	Status         reward.JobStatus    `json:"status"`
	CurrentBatch   int                 `json:"current_batch"`
	TotalBatches   int                 `json:"total_batches"`
	ProcessedUsers int                 `json:"processed_users"`
	FailedUsers    int                 `json:"failed_users"`
	TierStats      map[reward.Tier]int `json:"tier_stats,omitempty"`
	RetryCount     int                 `json:"retry_count"`
	LastError      string              `json:"last_error,omitempty"`
	Progress       float64             `json:"progress"`
	StartedAt      *time.Time          `json:"started_at,omitempty"`
	CompletedAt    *time.Time          `json:"completed_at,omitempty"`
	Duration       string              `json:"duration,omitempty"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// JobStatusResult is the status view: aggregate counts plus recent jobs.
type JobStatusResult struct {
	Counts map[reward.JobStatus]int `json:"counts"`
	Recent []JobSummary             `json:"recent"`
}

// JobStatusHandler handles the JobStatusQuery.
type JobStatusHandler struct {
	jobs reward.JobRepository
}

// NewJobStatusHandler creates a new JobStatusHandler.
func NewJobStatusHandler(jobs reward.JobRepository) *JobStatusHandler {
	return &JobStatusHandler{jobs: jobs}
}

// Handle assembles the status view.
func (h *JobStatusHandler) Handle(ctx context.Context, q JobStatusQuery) (*JobStatusResult, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRecentJobs
	}

	counts, err := h.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("job_status: count jobs: %w", err)
	}

	recent, err := h.jobs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("job_status: list recent: %w", err)
	}

	result := &JobStatusResult{
		Counts: counts,
		Recent: make([]JobSummary, 0, len(recent)),
	}
	for _, job := range recent {
		result.Recent = append(result.Recent, summarize(job))
	}
	return result, nil
}

func summarize(job *reward.Job) JobSummary {
	summary := JobSummary{
		ID:             job.ID,
		Category:       job.Category,
		Month:          job.Month,
		Year:           job.Year,
		Status:         job.Status,
		CurrentBatch:   job.CurrentBatch,
		TotalBatches:   job.TotalBatches,
		ProcessedUsers: job.ProcessedUsers,
		FailedUsers:    job.FailedUsers,
		TierStats:      job.TierStats,
		RetryCount:     job.RetryCount,
		LastError:      job.LastError,
		Progress:       job.Progress(),
		StartedAt:      job.StartedAt,
		CompletedAt:    job.CompletedAt,
		UpdatedAt:      job.UpdatedAt,
	}
	if job.ProcessingDuration > 0 {
		summary.Duration = job.ProcessingDuration.String()
	}
	return summary
}
