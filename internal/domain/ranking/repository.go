package ranking

import "context"

// SnapshotRepository persists ranking snapshots.
type SnapshotRepository interface {
	// GetByID returns a snapshot with its entries, or shared.ErrSnapshotNotFound.
	GetByID(ctx context.Context, id string) (*Snapshot, error)

	// FindByPeriod returns the snapshot for (category, month, year),
	// or shared.ErrSnapshotNotFound.
	FindByPeriod(ctx context.Context, category Category, month, year int) (*Snapshot, error)

	// Save persists a snapshot and its entries. A unique constraint on
	// (category, month, year) rejects a second snapshot for the same period
	// with shared.ErrSnapshotExists.
	Save(ctx context.Context, snapshot *Snapshot) error

	// MarkProcessed flags the snapshot as consumed.
	MarkProcessed(ctx context.Context, id string) error
}

// EntrySource produces the current ranked entries for a category.
// The Postgres implementation ranks in SQL with the expression from
// ScoreSQL; the in-memory implementation ranks with BuildEntries.
// Both must agree for identical inputs.
type EntrySource interface {
	LiveEntries(ctx context.Context, category Category) ([]Entry, error)
}
