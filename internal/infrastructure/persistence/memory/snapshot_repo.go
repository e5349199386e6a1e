package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// SnapshotRepository implements ranking.SnapshotRepository over
// mutex-guarded maps.
type SnapshotRepository struct {
	mu        sync.RWMutex
	snapshots map[string]*ranking.Snapshot
	byPeriod  map[string]string // period key -> snapshot ID
}

// NewSnapshotRepository creates an empty in-memory snapshot repository.
func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		snapshots: make(map[string]*ranking.Snapshot),
		byPeriod:  make(map[string]string),
	}
}

func periodKey(category ranking.Category, month, year int) string {
	return fmt.Sprintf("%s:%04d-%02d", category, year, month)
}

// Save persists a snapshot. A second snapshot for the same
// (category, month, year) is rejected with shared.ErrSnapshotExists.
func (r *SnapshotRepository) Save(_ context.Context, snapshot *ranking.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := periodKey(snapshot.Category, snapshot.Month, snapshot.Year)
	if _, exists := r.byPeriod[key]; exists {
		return shared.ErrSnapshotExists
	}

	r.snapshots[snapshot.ID] = cloneSnapshot(snapshot)
	r.byPeriod[key] = snapshot.ID
	return nil
}

// GetByID returns a copy of the snapshot, or shared.ErrSnapshotNotFound.
func (r *SnapshotRepository) GetByID(_ context.Context, id string) (*ranking.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.snapshots[id]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return cloneSnapshot(s), nil
}

// FindByPeriod returns the snapshot for (category, month, year).
func (r *SnapshotRepository) FindByPeriod(_ context.Context, category ranking.Category, month, year int) (*ranking.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPeriod[periodKey(category, month, year)]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	return cloneSnapshot(r.snapshots[id]), nil
}

// MarkProcessed flags the snapshot as consumed. Re-marking is a no-op.
func (r *SnapshotRepository) MarkProcessed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.snapshots[id]
	if !ok {
		return shared.ErrSnapshotNotFound
	}
	if !s.Processed {
		now := time.Now()
		s.Processed = true
		s.ProcessedAt = &now
	}
	return nil
}

func cloneSnapshot(s *ranking.Snapshot) *ranking.Snapshot {
	clone := *s
	if s.Entries != nil {
		clone.Entries = append([]ranking.Entry(nil), s.Entries...)
	}
	if s.ProcessedAt != nil {
		t := *s.ProcessedAt
		clone.ProcessedAt = &t
	}
	return &clone
}
