package reward

import (
	"context"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
)

// JobRepository persists reward jobs.
type JobRepository interface {
	// GetByID returns a job, or shared.ErrJobNotFound.
	GetByID(ctx context.Context, id string) (*Job, error)

	// FindByPeriod returns the job for (category, month, year),
	// or shared.ErrJobNotFound. At most one job exists per period.
	FindByPeriod(ctx context.Context, category ranking.Category, month, year int) (*Job, error)

	// Create persists a new job. A unique constraint on
	// (category, month, year) rejects a duplicate with shared.ErrAlreadyExists.
	Create(ctx context.Context, job *Job) error

	// Claim atomically takes the soft lease on a job: in one conditional
	// write it moves a claimable job to processing and stamps the lease.
	// Returns the claimed job, or shared.ErrJobNotClaimed when the job is
	// terminal or freshly leased by another worker.
	Claim(ctx context.Context, id string, staleness time.Duration) (*Job, error)

	// Update persists the job's mutable fields (status, cursor, stats,
	// error log, timestamps).
	Update(ctx context.Context, job *Job) error

	// ListClaimable returns jobs with pending work, oldest first.
	ListClaimable(ctx context.Context, staleness time.Duration) ([]*Job, error)

	// ListRecent returns the most recently updated jobs.
	ListRecent(ctx context.Context, limit int) ([]*Job, error)

	// CountByStatus returns job counts grouped by status.
	CountByStatus(ctx context.Context) (map[JobStatus]int, error)
}

// AwardResult reports what an Award call did.
type AwardResult struct {
	// Granted is true when this call credited the user. False means the
	// ledger already held a record for the period: a no-op, not an error.
	Granted bool

	// NewLevel is the user's level after the credit (only set when granted).
	NewLevel int
}

// Ledger is the idempotent reward ledger. The implementation must make
// Award atomic: the user credit and the ledger insert commit together
// or not at all.
type Ledger interface {
	// Award credits the user and inserts the ledger record in one
	// transaction. A duplicate (user, month, year, category) is returned
	// as Granted=false with no error and no credit.
	Award(ctx context.Context, record *Record) (AwardResult, error)

	// HistoryByUser returns a user's reward records, newest first.
	HistoryByUser(ctx context.Context, userID int64, limit int) ([]*Record, error)
}
