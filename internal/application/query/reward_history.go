package query

import (
	"context"
	"fmt"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
	"github.com/quizhub/rewards-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REWARD HISTORY QUERY
// ══════════════════════════════════════════════════════════════════════════════

// History limits.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 100
)

// RewardHistoryQuery contains parameters for a user's reward history.
type RewardHistoryQuery struct {
	UserID int64

	// Limit bounds the result (0 = DefaultHistoryLimit, capped at
	// MaxHistoryLimit).
	Limit int
}

// Validate validates the query.
func (q RewardHistoryQuery) Validate() error {
	if q.UserID <= 0 {
		return shared.ErrInvalidID
	}
	return nil
}

// RewardView is one reward record on the history view.
type RewardView struct {
	Category  string    `json:"category"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	Rank      int       `json:"rank"`
	Tier      string    `json:"tier"`
	Coins     int       `json:"coins"`
	XP        int       `json:"xp"`
	Badge     string    `json:"badge,omitempty"`
	AwardedAt time.Time `json:"awarded_at"`
}

// RewardHistoryResult is a user's reward history, newest first.
type RewardHistoryResult struct {
	UserID  int64        `json:"user_id"`
	Rewards []RewardView `json:"rewards"`
}

// RewardHistoryHandler handles the RewardHistoryQuery, serving from the
// Redis cache when possible.
type RewardHistoryHandler struct {
	ledger reward.Ledger
	cache  *redisinfra.Cache // nil disables caching
	ttl    time.Duration
	log    *logger.Logger
}

// NewRewardHistoryHandler creates a new RewardHistoryHandler. Passing a
// nil cache disables caching.
func NewRewardHistoryHandler(ledger reward.Ledger, cache *redisinfra.Cache, ttl time.Duration, log *logger.Logger) *RewardHistoryHandler {
	if ttl <= 0 {
		ttl = redisinfra.TTLRewardHistory
	}
	return &RewardHistoryHandler{ledger: ledger, cache: cache, ttl: ttl, log: log}
}

// Handle returns the user's rewards, newest first.
func (h *RewardHistoryHandler) Handle(ctx context.Context, q RewardHistoryQuery) (*RewardHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	cacheKey := redisinfra.RewardHistoryKey(q.UserID, limit)
	if h.cache != nil {
		var cached RewardHistoryResult
		if err := h.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	records, err := h.ledger.HistoryByUser(ctx, q.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("reward_history: %w", err)
	}

	result := &RewardHistoryResult{
		UserID:  q.UserID,
		Rewards: make([]RewardView, 0, len(records)),
	}
	for _, record := range records {
		result.Rewards = append(result.Rewards, RewardView{
			Category:  string(record.Category),
			Month:     record.Month,
			Year:      record.Year,
			Rank:      record.Rank,
			Tier:      string(record.Tier),
			Coins:     record.Coins,
			XP:        record.XP,
			Badge:     record.Badge,
			AwardedAt: record.CreatedAt,
		})
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, cacheKey, result, h.ttl); err != nil {
			h.log.Warn("failed to cache reward history", logger.UserID(q.UserID), logger.Err(err))
		}
	}

	return result, nil
}
