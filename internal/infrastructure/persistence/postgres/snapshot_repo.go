// Package postgres implements the PostgreSQL persistence layer for the
// rewards hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements ranking.SnapshotRepository for PostgreSQL.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// Save persists a snapshot and its entries in one transaction. The
// unique (category, month, year) constraint turns a concurrent second
// init into shared.ErrSnapshotExists instead of a duplicate snapshot.
func (r *SnapshotRepository) Save(ctx context.Context, snapshot *ranking.Snapshot) error {
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ranking_snapshots (id, category, month, year, total_users, processed, processed_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			snapshot.ID,
			string(snapshot.Category),
			snapshot.Month,
			snapshot.Year,
			snapshot.TotalUsers,
			snapshot.Processed,
			snapshot.ProcessedAt,
			snapshot.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert snapshot: %w", err)
		}

		// Batch insert entries
		if len(snapshot.Entries) > 0 {
			batch := &pgx.Batch{}
			for _, entry := range snapshot.Entries {
				batch.Queue(`
					INSERT INTO ranking_entries (snapshot_id, user_id, display_name, score, rank)
					VALUES ($1, $2, $3, $4, $5)
				`,
					snapshot.ID,
					entry.UserID,
					entry.DisplayName,
					entry.Score,
					entry.Rank,
				)
			}

			br := tx.SendBatch(ctx, batch)
			defer br.Close()

			for range snapshot.Entries {
				if _, err := br.Exec(); err != nil {
					return fmt.Errorf("failed to insert entry: %w", err)
				}
			}
		}

		return nil
	})
	if IsUniqueViolation(err) {
		return shared.ErrSnapshotExists
	}
	return err
}

// GetByID returns a snapshot with its entries.
func (r *SnapshotRepository) GetByID(ctx context.Context, id string) (*ranking.Snapshot, error) {
	return r.getSnapshot(ctx, `
		SELECT id, category, month, year, total_users, processed, processed_at, created_at
		FROM ranking_snapshots
		WHERE id = $1
	`, id)
}

// FindByPeriod returns the snapshot for (category, month, year).
func (r *SnapshotRepository) FindByPeriod(ctx context.Context, category ranking.Category, month, year int) (*ranking.Snapshot, error) {
	return r.getSnapshot(ctx, `
		SELECT id, category, month, year, total_users, processed, processed_at, created_at
		FROM ranking_snapshots
		WHERE category = $1 AND month = $2 AND year = $3
	`, string(category), month, year)
}

// MarkProcessed flags the snapshot as consumed by a completed job.
func (r *SnapshotRepository) MarkProcessed(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE ranking_snapshots
		SET processed = TRUE, processed_at = NOW()
		WHERE id = $1 AND NOT processed
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark snapshot processed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Already processed or missing. Re-marking is a no-op, so only
		// a missing snapshot is an error.
		var exists bool
		if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ranking_snapshots WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check snapshot existence: %w", err)
		}
		if !exists {
			return shared.ErrSnapshotNotFound
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// INTERNAL
// ─────────────────────────────────────────────────────────────────────────────

func (r *SnapshotRepository) getSnapshot(ctx context.Context, query string, args ...interface{}) (*ranking.Snapshot, error) {
	var snapshot ranking.Snapshot
	var category string

	err := r.conn.QueryRow(ctx, query, args...).Scan(
		&snapshot.ID,
		&category,
		&snapshot.Month,
		&snapshot.Year,
		&snapshot.TotalUsers,
		&snapshot.Processed,
		&snapshot.ProcessedAt,
		&snapshot.CreatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshot.Category = ranking.Category(category)

	entries, err := r.getSnapshotEntries(ctx, snapshot.ID)
	if err != nil {
		return nil, err
	}
	snapshot.Entries = entries

	return &snapshot, nil
}

func (r *SnapshotRepository) getSnapshotEntries(ctx context.Context, snapshotID string) ([]ranking.Entry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT user_id, display_name, score, rank
		FROM ranking_entries
		WHERE snapshot_id = $1
		ORDER BY rank ASC
	`, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot entries: %w", err)
	}
	defer rows.Close()

	var entries []ranking.Entry
	for rows.Next() {
		var e ranking.Entry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Score, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
