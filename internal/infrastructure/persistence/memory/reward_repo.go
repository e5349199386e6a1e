package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RewardJobRepository implements reward.JobRepository over a
// mutex-guarded map. The Claim path reproduces the conditional-update
// lease of the PostgreSQL implementation.
type RewardJobRepository struct {
	mu       sync.RWMutex
	jobs     map[string]*reward.Job
	byPeriod map[string]string // period key -> job ID

	// now is swappable so lease-staleness tests can control the clock.
	now func() time.Time
}

// NewRewardJobRepository creates an empty in-memory job repository.
func NewRewardJobRepository() *RewardJobRepository {
	return &RewardJobRepository{
		jobs:     make(map[string]*reward.Job),
		byPeriod: make(map[string]string),
		now:      time.Now,
	}
}

// SetClock overrides the repository clock. Test hook.
func (r *RewardJobRepository) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Create persists a new job; a duplicate period is rejected with
// shared.ErrAlreadyExists.
func (r *RewardJobRepository) Create(_ context.Context, job *reward.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := periodKey(job.Category, job.Month, job.Year)
	if _, exists := r.byPeriod[key]; exists {
		return shared.ErrAlreadyExists
	}

	r.jobs[job.ID] = cloneJob(job)
	r.byPeriod[key] = job.ID
	return nil
}

// GetByID returns a copy of the job, or shared.ErrJobNotFound.
func (r *RewardJobRepository) GetByID(_ context.Context, id string) (*reward.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// FindByPeriod returns the job for (category, month, year).
func (r *RewardJobRepository) FindByPeriod(_ context.Context, category ranking.Category, month, year int) (*reward.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPeriod[periodKey(category, month, year)]
	if !ok {
		return nil, shared.ErrJobNotFound
	}
	return cloneJob(r.jobs[id]), nil
}

// Claim atomically takes the soft lease: the pending-work check and the
// transition to processing happen under one lock, so only one caller
// wins a contended job.
func (r *RewardJobRepository) Claim(_ context.Context, id string, staleness time.Duration) (*reward.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, shared.ErrJobNotFound
	}

	now := r.now()
	if !job.HasPendingWork(now, staleness) {
		return nil, shared.ErrJobNotClaimed
	}
	if err := job.MarkProcessing(now); err != nil {
		return nil, shared.ErrJobNotClaimed
	}
	return cloneJob(job), nil
}

// Update persists the job's mutable fields.
func (r *RewardJobRepository) Update(_ context.Context, job *reward.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; !ok {
		return shared.ErrJobNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

// ListClaimable returns jobs with pending work, oldest first.
func (r *RewardJobRepository) ListClaimable(_ context.Context, staleness time.Duration) ([]*reward.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.now()
	var jobs []*reward.Job
	for _, job := range r.jobs {
		if job.HasPendingWork(now, staleness) {
			jobs = append(jobs, cloneJob(job))
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

// ListRecent returns the most recently updated jobs.
func (r *RewardJobRepository) ListRecent(_ context.Context, limit int) ([]*reward.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	jobs := make([]*reward.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, cloneJob(job))
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].UpdatedAt.After(jobs[j].UpdatedAt) })

	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// CountByStatus returns job counts grouped by status.
func (r *RewardJobRepository) CountByStatus(_ context.Context) (map[reward.JobStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[reward.JobStatus]int)
	for _, job := range r.jobs {
		counts[job.Status]++
	}
	return counts, nil
}

func cloneJob(j *reward.Job) *reward.Job {
	clone := *j
	if j.TierStats != nil {
		clone.TierStats = make(map[reward.Tier]int, len(j.TierStats))
		for tier, n := range j.TierStats {
			clone.TierStats[tier] = n
		}
	}
	if j.ErrorLog != nil {
		clone.ErrorLog = append([]reward.JobError(nil), j.ErrorLog...)
	}
	for _, field := range []**time.Time{&clone.StartedAt, &clone.CompletedAt, &clone.LastProcessedAt} {
		if *field != nil {
			t := **field
			*field = &t
		}
	}
	return &clone
}

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// RewardLedger implements reward.Ledger against the in-memory user
// repository. One mutex covers the duplicate check, the record insert,
// and the wallet credit, mirroring the single transaction the
// PostgreSQL ledger runs.
type RewardLedger struct {
	mu      sync.Mutex
	users   *UserRepository
	records map[string]*reward.Record // idempotency key -> record

	// FailFor makes Award fail for the listed user IDs. Test hook for
	// exercising partial-batch failures.
	FailFor map[int64]error
}

// NewRewardLedger creates an in-memory ledger crediting the given users.
func NewRewardLedger(users *UserRepository) *RewardLedger {
	return &RewardLedger{
		users:   users,
		records: make(map[string]*reward.Record),
	}
}

// Award credits the user and stores the record, or reports
// Granted=false when the period was already rewarded.
func (l *RewardLedger) Award(_ context.Context, record *reward.Record) (reward.AwardResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err, ok := l.FailFor[record.UserID]; ok {
		return reward.AwardResult{}, err
	}

	key := record.IdempotencyKey()
	if _, exists := l.records[key]; exists {
		return reward.AwardResult{Granted: false}, nil
	}

	level, err := l.users.credit(record.UserID, record.Coins, record.XP, record.Badge, record.Month, record.Year)
	if err != nil {
		return reward.AwardResult{}, err
	}

	stored := *record
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	l.records[key] = &stored

	return reward.AwardResult{Granted: true, NewLevel: level}, nil
}

// HistoryByUser returns the user's records, newest first.
func (l *RewardLedger) HistoryByUser(_ context.Context, userID int64, limit int) ([]*reward.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var records []*reward.Record
	for _, rec := range l.records {
		if rec.UserID == userID {
			clone := *rec
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID > records[j].ID
	})

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// RecordCount returns how many ledger records exist. Test helper.
func (l *RewardLedger) RecordCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
