package reward

import (
	"fmt"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// Record is one row in the reward ledger: proof that a user was paid
// for a period. The unique key (user, month, year, category) is what
// makes the award idempotent.
type Record struct {
	ID       string
	UserID   int64
	Category ranking.Category
	Month    int
	Year     int
	Rank     int
	Tier     Tier
	Coins    int
	XP       int
	Badge    string

	CreatedAt time.Time
}

// NewRecord builds a ledger record for one snapshot entry.
func NewRecord(id string, entry ranking.Entry, category ranking.Category, month, year int, tier Tier, payout Payout) (*Record, error) {
	if id == "" {
		return nil, shared.WrapError("reward", "CreateRecord", shared.ErrInvalidID, "record ID is empty", nil)
	}
	if entry.UserID <= 0 {
		return nil, shared.WrapError("reward", "CreateRecord", shared.ErrInvalidID, "user ID must be positive", nil)
	}
	if entry.Rank < 1 {
		return nil, shared.ErrInvalidRank
	}

	return &Record{
		ID:        id,
		UserID:    entry.UserID,
		Category:  category,
		Month:     month,
		Year:      year,
		Rank:      entry.Rank,
		Tier:      tier,
		Coins:     payout.Coins,
		XP:        payout.XP,
		Badge:     payout.Badge,
		CreatedAt: time.Now(),
	}, nil
}

// IdempotencyKey returns the logical key the unique constraint covers.
// Useful for logging and in-memory fakes.
func (r *Record) IdempotencyKey() string {
	return IdempotencyKey(r.UserID, r.Month, r.Year, r.Category)
}

// IdempotencyKey builds the one-reward-per-user-per-period key.
func IdempotencyKey(userID int64, month, year int, category ranking.Category) string {
	return fmt.Sprintf("%d:%d:%d:%s", userID, month, year, category)
}
