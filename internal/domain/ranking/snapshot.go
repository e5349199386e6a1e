package ranking

import (
	"sort"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// Entry
// ═══════════════════════════════════════════════════════════════════════════

// Entry is one ranked user inside a snapshot.
type Entry struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"` // dense, 1..N
}

// ═══════════════════════════════════════════════════════════════════════════
// Snapshot
// ═══════════════════════════════════════════════════════════════════════════

// Snapshot is the frozen ranking for one (category, month, year).
// Once built it never changes; the reward job reads batches from it.
type Snapshot struct {
	ID          string
	Category    Category
	Month       int
	Year        int
	TotalUsers  int
	Processed   bool
	ProcessedAt *time.Time
	CreatedAt   time.Time
	Entries     []Entry
}

// NewSnapshot creates a snapshot from already-ranked entries.
func NewSnapshot(id string, category Category, period timeutil.Period, entries []Entry) (*Snapshot, error) {
	if id == "" {
		return nil, shared.WrapError("ranking", "CreateSnapshot", shared.ErrInvalidID, "snapshot ID is empty", nil)
	}
	if !category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}
	if !period.IsValid() {
		return nil, shared.WrapError("ranking", "CreateSnapshot", shared.ErrInvalidInput, "invalid period", nil)
	}

	return &Snapshot{
		ID:         id,
		Category:   category,
		Month:      period.Month,
		Year:       period.Year,
		TotalUsers: len(entries),
		CreatedAt:  time.Now(),
		Entries:    entries,
	}, nil
}

// Period returns the snapshot's reward period.
func (s *Snapshot) Period() timeutil.Period {
	return timeutil.Period{Month: s.Month, Year: s.Year}
}

// Batch returns the entries for a zero-based batch index. Past the last
// batch it returns an empty slice, which the processor reads as "done".
func (s *Snapshot) Batch(index, size int) []Entry {
	if index < 0 || size <= 0 {
		return nil
	}
	start := index * size
	if start >= len(s.Entries) {
		return nil
	}
	end := start + size
	if end > len(s.Entries) {
		end = len(s.Entries)
	}
	return s.Entries[start:end]
}

// TotalBatches returns how many batches of the given size cover the snapshot.
func (s *Snapshot) TotalBatches(size int) int {
	if size <= 0 {
		return 0
	}
	return (len(s.Entries) + size - 1) / size
}

// MarkProcessed flags the snapshot as consumed by a completed reward job.
func (s *Snapshot) MarkProcessed() {
	if s.Processed {
		return
	}
	now := time.Now()
	s.Processed = true
	s.ProcessedAt = &now
}

// ═══════════════════════════════════════════════════════════════════════════
// Builder
// ═══════════════════════════════════════════════════════════════════════════

// BuildEntries scores and ranks users for a category. Ordering is score
// descending with user ID ascending as the tie-break, so two builds over
// the same users always produce the same ranking. Ranks are dense 1..N:
// equal scores still get distinct ranks.
func BuildEntries(users []*user.User, category Category) []Entry {
	entries := make([]Entry, 0, len(users))
	for _, u := range users {
		if !u.IsActive() || u.Role != category.Role() {
			continue
		}
		entries = append(entries, Entry{
			UserID:      u.ID,
			DisplayName: u.DisplayName,
			Score:       ScoreUser(u, category),
		})
	}

	SortEntries(entries)
	AssignRanks(entries)
	return entries
}

// SortEntries orders entries by score descending, user ID ascending.
func SortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].UserID < entries[j].UserID
	})
}

// AssignRanks writes dense ranks 1..N onto already-sorted entries.
func AssignRanks(entries []Entry) {
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
