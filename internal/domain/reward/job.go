package reward

import (
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// Status
// ═══════════════════════════════════════════════════════════════════════════

// JobStatus is the lifecycle state of a reward job.
type JobStatus string

const (
	// JobPending means the job is waiting to be picked up.
	JobPending JobStatus = "pending"

	// JobProcessing means a worker is advancing the job batch by batch.
	JobProcessing JobStatus = "processing"

	// JobCompleted means all batches finished. Terminal.
	JobCompleted JobStatus = "completed"

	// JobFailed means the retry limit was exhausted. Terminal.
	JobFailed JobStatus = "failed"
)

// IsValid checks if the status is known.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further processing can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Processing defaults.
const (
	// DefaultBatchSize is how many snapshot entries one batch covers.
	DefaultBatchSize = 50

	// MaxRetries caps how many times a job may fail before going terminal.
	MaxRetries = 3

	// DefaultStaleness is the soft-lease window: a processing job whose
	// lastProcessedAt is older than this is presumed abandoned and may be
	// claimed by another worker.
	DefaultStaleness = 5 * time.Minute
)

// ═══════════════════════════════════════════════════════════════════════════
// Job
// ═══════════════════════════════════════════════════════════════════════════

// JobError is one per-user failure recorded during processing.
type JobError struct {
	UserID  int64     `json:"user_id"`
	Batch   int       `json:"batch"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// maxErrorLog bounds the error log; beyond it only counters grow.
const maxErrorLog = 200

// Job is the durable state machine driving one (category, month, year)
// reward run. All resume state lives here: a worker can die at any point
// and the next worker continues from CurrentBatch.
type Job struct {
	ID         string
	Category   ranking.Category
	Month      int
	Year       int
	SnapshotID string

	Status       JobStatus
	BatchSize    int
	CurrentBatch int // zero-based index of the next batch to process
	TotalBatches int

	ProcessedUsers int
	FailedUsers    int
	TierStats      map[Tier]int

	RetryCount int
	ErrorLog   []JobError
	LastError  string

	StartedAt          *time.Time
	CompletedAt        *time.Time
	LastProcessedAt    *time.Time
	ProcessingDuration time.Duration

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewJobParams contains parameters for creating a job.
type NewJobParams struct {
	ID         string
	Category   ranking.Category
	Period     timeutil.Period
	SnapshotID string
	BatchSize  int
	TotalUsers int
}

// NewJob creates a pending job for a snapshot.
func NewJob(params NewJobParams) (*Job, error) {
	if params.ID == "" {
		return nil, shared.WrapError("reward", "CreateJob", shared.ErrInvalidID, "job ID is empty", nil)
	}
	if !params.Category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	if !params.Period.IsValid() {
		return nil, shared.WrapError("reward", "CreateJob", shared.ErrInvalidInput, "invalid period", nil)
	}
	if params.SnapshotID == "" {
		return nil, shared.WrapError("reward", "CreateJob", shared.ErrInvalidID, "snapshot ID is empty", nil)
	}

	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	totalBatches := 0
	if params.TotalUsers > 0 {
		totalBatches = (params.TotalUsers + batchSize - 1) / batchSize
	}

	now := time.Now()
	return &Job{
		ID:           params.ID,
		Category:     params.Category,
		Month:        params.Period.Month,
		Year:         params.Period.Year,
		SnapshotID:   params.SnapshotID,
		Status:       JobPending,
		BatchSize:    batchSize,
		TotalBatches: totalBatches,
		TierStats:    make(map[Tier]int),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Period returns the job's reward period.
func (j *Job) Period() timeutil.Period {
	return timeutil.Period{Month: j.Month, Year: j.Year}
}

// HasPendingWork reports whether the job should be picked up: not
// terminal, and either never touched or untouched for longer than the
// staleness window. A fresh lastProcessedAt means another worker holds
// the soft lease.
func (j *Job) HasPendingWork(now time.Time, staleness time.Duration) bool {
	if j.Status.IsTerminal() {
		return false
	}
	if j.Status == JobPending {
		return true
	}
	if j.LastProcessedAt == nil {
		return true
	}
	return now.Sub(*j.LastProcessedAt) >= staleness
}

// MarkProcessing transitions the job into processing and refreshes the
// soft lease. StartedAt is stamped only on first entry so the total
// processing duration spans resumes.
func (j *Job) MarkProcessing(now time.Time) error {
	if j.Status.IsTerminal() {
		return shared.ErrInvalidTransition
	}
	j.Status = JobProcessing
	if j.StartedAt == nil {
		t := now
		j.StartedAt = &t
	}
	j.touch(now)
	return nil
}

// RecordSuccess counts one awarded user in the given tier.
func (j *Job) RecordSuccess(tier Tier) {
	j.ProcessedUsers++
	if j.TierStats == nil {
		j.TierStats = make(map[Tier]int)
	}
	j.TierStats[tier]++
}

// RecordFailure counts one failed user and appends to the error log.
func (j *Job) RecordFailure(userID int64, message string, now time.Time) {
	j.FailedUsers++
	j.LastError = message
	if len(j.ErrorLog) < maxErrorLog {
		j.ErrorLog = append(j.ErrorLog, JobError{
			UserID:  userID,
			Batch:   j.CurrentBatch,
			Message: message,
			At:      now,
		})
	}
}

// AdvanceBatch moves the cursor to the next batch and refreshes the lease.
func (j *Job) AdvanceBatch(now time.Time) {
	j.CurrentBatch++
	j.touch(now)
}

// Release returns a processing job to pending after a graceful
// single-batch step, so the next process run can claim it immediately
// instead of waiting out the staleness window.
func (j *Job) Release(now time.Time) error {
	if j.Status != JobProcessing {
		return shared.ErrInvalidTransition
	}
	j.Status = JobPending
	j.UpdatedAt = now
	return nil
}

// MarkCompleted finishes the job and computes the total processing duration.
func (j *Job) MarkCompleted(now time.Time) error {
	if j.Status != JobProcessing {
		return shared.ErrInvalidTransition
	}
	j.Status = JobCompleted
	t := now
	j.CompletedAt = &t
	if j.StartedAt != nil {
		j.ProcessingDuration = now.Sub(*j.StartedAt)
	}
	j.touch(now)
	return nil
}

// MarkFailed records a job-level failure. Below the retry limit the job
// returns to pending so a later process run retries it; at the limit it
// goes terminal.
func (j *Job) MarkFailed(reason string, now time.Time) error {
	if j.Status.IsTerminal() {
		return shared.ErrInvalidTransition
	}
	j.RetryCount++
	j.LastError = reason
	if len(j.ErrorLog) < maxErrorLog {
		j.ErrorLog = append(j.ErrorLog, JobError{Batch: j.CurrentBatch, Message: reason, At: now})
	}
	if j.RetryCount >= MaxRetries {
		j.Status = JobFailed
	} else {
		j.Status = JobPending
	}
	j.touch(now)
	return nil
}

// IsComplete reports whether the cursor moved past the last batch.
func (j *Job) IsComplete() bool {
	return j.TotalBatches > 0 && j.CurrentBatch >= j.TotalBatches
}

// Progress returns completed batches over total as a percentage.
func (j *Job) Progress() float64 {
	if j.TotalBatches <= 0 {
		return 0
	}
	p := float64(j.CurrentBatch) / float64(j.TotalBatches) * 100
	if p > 100 {
		p = 100
	}
	return p
}

func (j *Job) touch(now time.Time) {
	t := now
	j.LastProcessedAt = &t
	j.UpdatedAt = now
}
