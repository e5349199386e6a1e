// Package postgres implements the PostgreSQL persistence layer for the
// rewards hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD JOB REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardJobRepository implements reward.JobRepository for PostgreSQL.
// The soft lease is a single conditional UPDATE: claiming and stamping
// the lease happen inside one statement's atomicity, so two workers can
// never both claim the same job.
type RewardJobRepository struct {
	conn *Connection
}

// NewRewardJobRepository creates a new RewardJobRepository.
func NewRewardJobRepository(conn *Connection) *RewardJobRepository {
	return &RewardJobRepository{conn: conn}
}

const jobColumns = `
	id, category, month, year, snapshot_id,
	status, batch_size, current_batch, total_batches,
	processed_users, failed_users, tier_stats,
	retry_count, error_log, last_error,
	started_at, completed_at, last_processed_at, processing_duration_ms,
	created_at, updated_at
`

// Create persists a new job.
func (r *RewardJobRepository) Create(ctx context.Context, job *reward.Job) error {
	tierStats, errorLog, err := encodeJobJSON(job)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, `
		INSERT INTO reward_jobs (
			id, category, month, year, snapshot_id,
			status, batch_size, current_batch, total_batches,
			processed_users, failed_users, tier_stats,
			retry_count, error_log, last_error,
			started_at, completed_at, last_processed_at, processing_duration_ms,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`,
		job.ID, string(job.Category), job.Month, job.Year, job.SnapshotID,
		string(job.Status), job.BatchSize, job.CurrentBatch, job.TotalBatches,
		job.ProcessedUsers, job.FailedUsers, tierStats,
		job.RetryCount, errorLog, job.LastError,
		job.StartedAt, job.CompletedAt, job.LastProcessedAt, job.ProcessingDuration.Milliseconds(),
		job.CreatedAt, job.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return shared.WrapError("reward", "CreateJob", shared.ErrAlreadyExists, "job already exists for period", err)
	}
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

// GetByID returns a job.
func (r *RewardJobRepository) GetByID(ctx context.Context, id string) (*reward.Job, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM reward_jobs WHERE id = $1
	`, jobColumns), id)

	job, err := scanJob(row)
	if IsNoRows(err) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job by id: %w", err)
	}
	return job, nil
}

// FindByPeriod returns the job for (category, month, year).
func (r *RewardJobRepository) FindByPeriod(ctx context.Context, category ranking.Category, month, year int) (*reward.Job, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM reward_jobs
		WHERE category = $1 AND month = $2 AND year = $3
	`, jobColumns), string(category), month, year)

	job, err := scanJob(row)
	if IsNoRows(err) {
		return nil, shared.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find job by period: %w", err)
	}
	return job, nil
}

// Claim atomically takes the soft lease. The WHERE clause admits only
// jobs with pending work; everything else returns zero rows and the
// caller gets shared.ErrJobNotClaimed.
func (r *RewardJobRepository) Claim(ctx context.Context, id string, staleness time.Duration) (*reward.Job, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		UPDATE reward_jobs
		SET status = 'processing',
		    started_at = COALESCE(started_at, NOW()),
		    last_processed_at = NOW(),
		    updated_at = NOW()
		WHERE id = $1
		  AND status IN ('pending', 'processing')
		  AND (status = 'pending' OR last_processed_at IS NULL OR last_processed_at < NOW() - $2::interval)
		RETURNING %s
	`, jobColumns), id, staleness)

	job, err := scanJob(row)
	if IsNoRows(err) {
		return nil, shared.ErrJobNotClaimed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}
	return job, nil
}

// Update persists the job's mutable fields.
func (r *RewardJobRepository) Update(ctx context.Context, job *reward.Job) error {
	tierStats, errorLog, err := encodeJobJSON(job)
	if err != nil {
		return err
	}

	tag, err := r.conn.Exec(ctx, `
		UPDATE reward_jobs
		SET status = $2,
		    current_batch = $3,
		    processed_users = $4,
		    failed_users = $5,
		    tier_stats = $6,
		    retry_count = $7,
		    error_log = $8,
		    last_error = $9,
		    started_at = $10,
		    completed_at = $11,
		    last_processed_at = $12,
		    processing_duration_ms = $13,
		    updated_at = $14
		WHERE id = $1
	`,
		job.ID, string(job.Status), job.CurrentBatch,
		job.ProcessedUsers, job.FailedUsers, tierStats,
		job.RetryCount, errorLog, job.LastError,
		job.StartedAt, job.CompletedAt, job.LastProcessedAt, job.ProcessingDuration.Milliseconds(),
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrJobNotFound
	}
	return nil
}

// ListClaimable returns jobs with pending work, oldest first.
func (r *RewardJobRepository) ListClaimable(ctx context.Context, staleness time.Duration) ([]*reward.Job, error) {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM reward_jobs
		WHERE status IN ('pending', 'processing')
		  AND (status = 'pending' OR last_processed_at IS NULL OR last_processed_at < NOW() - $1::interval)
		ORDER BY created_at ASC
	`, jobColumns), staleness)
	if err != nil {
		return nil, fmt.Errorf("failed to list claimable jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListRecent returns the most recently updated jobs.
func (r *RewardJobRepository) ListRecent(ctx context.Context, limit int) ([]*reward.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM reward_jobs
		ORDER BY updated_at DESC
		LIMIT $1
	`, jobColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// CountByStatus returns job counts grouped by status.
func (r *RewardJobRepository) CountByStatus(ctx context.Context) (map[reward.JobStatus]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT status, COUNT(*) FROM reward_jobs GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[reward.JobStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", err)
		}
		counts[reward.JobStatus(status)] = count
	}
	return counts, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// SCAN HELPERS
// ─────────────────────────────────────────────────────────────────────────────

func encodeJobJSON(job *reward.Job) (tierStats, errorLog []byte, err error) {
	tierStats, err = json.Marshal(job.TierStats)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tier stats: %w", err)
	}
	if job.ErrorLog == nil {
		errorLog = []byte("[]")
	} else {
		errorLog, err = json.Marshal(job.ErrorLog)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode error log: %w", err)
		}
	}
	return tierStats, errorLog, nil
}

func scanJob(row rowScanner) (*reward.Job, error) {
	var job reward.Job
	var category, status string
	var tierStats, errorLog []byte
	var durationMs int64

	err := row.Scan(
		&job.ID, &category, &job.Month, &job.Year, &job.SnapshotID,
		&status, &job.BatchSize, &job.CurrentBatch, &job.TotalBatches,
		&job.ProcessedUsers, &job.FailedUsers, &tierStats,
		&job.RetryCount, &errorLog, &job.LastError,
		&job.StartedAt, &job.CompletedAt, &job.LastProcessedAt, &durationMs,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Category = ranking.Category(category)
	job.Status = reward.JobStatus(status)
	job.ProcessingDuration = time.Duration(durationMs) * time.Millisecond

	if len(tierStats) > 0 {
		if err := json.Unmarshal(tierStats, &job.TierStats); err != nil {
			return nil, fmt.Errorf("failed to decode tier stats: %w", err)
		}
	}
	if job.TierStats == nil {
		job.TierStats = make(map[reward.Tier]int)
	}
	if len(errorLog) > 0 {
		if err := json.Unmarshal(errorLog, &job.ErrorLog); err != nil {
			return nil, fmt.Errorf("failed to decode error log: %w", err)
		}
	}
	return &job, nil
}

func scanJobs(rows pgx.Rows) ([]*reward.Job, error) {
	var jobs []*reward.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD LEDGER IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardLedger implements reward.Ledger for PostgreSQL. Award runs the
// ledger insert and the wallet credit inside one transaction: either the
// user is paid and the record exists, or neither happened.
type RewardLedger struct {
	conn *Connection
}

// NewRewardLedger creates a new RewardLedger.
func NewRewardLedger(conn *Connection) *RewardLedger {
	return &RewardLedger{conn: conn}
}

// Award credits the user and inserts the ledger record atomically.
// The ON CONFLICT DO NOTHING on the idempotency key makes a duplicate
// attempt (retry, resumed batch, concurrent worker) a clean no-op:
// zero inserted rows means the credit never runs.
func (l *RewardLedger) Award(ctx context.Context, record *reward.Record) (reward.AwardResult, error) {
	var result reward.AwardResult

	err := l.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO reward_records (id, user_id, category, month, year, rank, tier, coins, xp, badge, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (user_id, month, year, category) DO NOTHING
		`,
			record.ID, record.UserID, string(record.Category),
			record.Month, record.Year, record.Rank,
			string(record.Tier), record.Coins, record.XP, record.Badge,
			record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert reward record: %w", err)
		}
		if tag.RowsAffected() == 0 {
			// Already rewarded for this period.
			result.Granted = false
			return nil
		}

		// Credit the wallet. GREATEST keeps the level monotonic even if
		// the stored level ever ran ahead of the XP formula.
		err = tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE users
			SET coins = coins + $2,
			    total_xp = total_xp + $3,
			    level = GREATEST(level, (total_xp + $3) / %d + 1),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING level
		`, user.XPPerLevel), record.UserID, record.Coins, record.XP).Scan(&result.NewLevel)
		if IsNoRows(err) {
			return shared.ErrUserNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to credit user: %w", err)
		}

		// Badge append, guarded against a duplicate for the same period.
		if record.Badge != "" {
			badge := user.Badge{
				Name:      record.Badge,
				Month:     record.Month,
				Year:      record.Year,
				AwardedAt: record.CreatedAt,
			}
			badgeJSON, err := json.Marshal([]user.Badge{badge})
			if err != nil {
				return fmt.Errorf("failed to encode badge: %w", err)
			}
			guardJSON, err := json.Marshal([]map[string]interface{}{{
				"name":  badge.Name,
				"month": badge.Month,
				"year":  badge.Year,
			}})
			if err != nil {
				return fmt.Errorf("failed to encode badge guard: %w", err)
			}

			_, err = tx.Exec(ctx, `
				UPDATE users
				SET badges = badges || $2::jsonb
				WHERE id = $1 AND NOT (badges @> $3::jsonb)
			`, record.UserID, badgeJSON, guardJSON)
			if err != nil {
				return fmt.Errorf("failed to append badge: %w", err)
			}
		}

		result.Granted = true
		return nil
	})
	if err != nil {
		return reward.AwardResult{}, err
	}
	return result, nil
}

// HistoryByUser returns a user's reward records, newest first.
func (l *RewardLedger) HistoryByUser(ctx context.Context, userID int64, limit int) ([]*reward.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.conn.Query(ctx, `
		SELECT id, user_id, category, month, year, rank, tier, coins, xp, badge, created_at
		FROM reward_records
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get reward history: %w", err)
	}
	defer rows.Close()

	var records []*reward.Record
	for rows.Next() {
		var rec reward.Record
		var category, tier string
		err := rows.Scan(
			&rec.ID, &rec.UserID, &category, &rec.Month, &rec.Year,
			&rec.Rank, &tier, &rec.Coins, &rec.XP, &rec.Badge, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward record: %w", err)
		}
		rec.Category = ranking.Category(category)
		rec.Tier = reward.Tier(tier)
		records = append(records, &rec)
	}
	return records, rows.Err()
}
