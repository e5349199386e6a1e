package query

import (
	"context"
	"fmt"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
	"github.com/quizhub/rewards-hub/pkg/logger"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD QUERY
// Serves frozen snapshot pages. Snapshots are immutable, so the whole
// snapshot is pushed into the Redis cache on first read and pages come
// from the sorted set afterwards.
// ══════════════════════════════════════════════════════════════════════════════

// Leaderboard page limits.
const (
	DefaultLeaderboardPageSize = 25
	MaxLeaderboardPageSize     = 100
)

// LeaderboardQuery contains parameters for a leaderboard page.
type LeaderboardQuery struct {
	Category ranking.Category

	// Month and Year select the period. Zero values mean the previous
	// calendar month, matching the init default.
	Month int
	Year  int

	Page     int
	PageSize int
}

// Validate validates the query.
func (q LeaderboardQuery) Validate() error {
	if !q.Category.IsValid() {
		return shared.ErrInvalidCategory
	}
	if (q.Month == 0) != (q.Year == 0) {
		return shared.WrapError("ranking", "Leaderboard", shared.ErrInvalidInput,
			"month and year must be provided together", nil)
	}
	if q.Month != 0 {
		if _, err := timeutil.NewPeriod(q.Month, q.Year); err != nil {
			return err
		}
	}
	return nil
}

// LeaderboardHandler handles the LeaderboardQuery.
type LeaderboardHandler struct {
	snapshots ranking.SnapshotRepository
	cache     *redisinfra.LeaderboardCache // nil disables caching
	plain     *redisinfra.Cache
	ttl       time.Duration
	log       *logger.Logger

	now func() time.Time
}

// NewLeaderboardHandler creates a new LeaderboardHandler. Passing nil
// caches disables caching.
func NewLeaderboardHandler(
	snapshots ranking.SnapshotRepository,
	cache *redisinfra.LeaderboardCache,
	plain *redisinfra.Cache,
	ttl time.Duration,
	log *logger.Logger,
) *LeaderboardHandler {
	if ttl <= 0 {
		ttl = redisinfra.TTLLeaderboard
	}
	return &LeaderboardHandler{
		snapshots: snapshots,
		cache:     cache,
		plain:     plain,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// Handle returns one page of the period's frozen ranking.
func (h *LeaderboardHandler) Handle(ctx context.Context, q LeaderboardQuery) (*redisinfra.LeaderboardPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	period := timeutil.PreviousPeriod(h.now())
	if q.Month != 0 {
		var err error
		period, err = timeutil.NewPeriod(q.Month, q.Year)
		if err != nil {
			return nil, err
		}
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultLeaderboardPageSize
	}
	if pageSize > MaxLeaderboardPageSize {
		pageSize = MaxLeaderboardPageSize
	}

	// Fast path: period -> snapshot ID mapping plus the cached pages.
	if h.cache != nil && h.plain != nil {
		if id, err := h.plain.GetString(ctx, h.periodCacheKey(q.Category, period)); err == nil {
			if cached, err := h.cache.Page(ctx, id, page, pageSize); err == nil {
				return cached, nil
			}
		}
	}

	snapshot, err := h.snapshots.FindByPeriod(ctx, q.Category, period.Month, period.Year)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}

	if h.cache != nil && h.plain != nil {
		if err := h.cache.Store(ctx, snapshot); err != nil {
			h.log.Warn("failed to cache leaderboard", logger.SnapshotID(snapshot.ID), logger.Err(err))
		} else if err := h.plain.SetString(ctx, h.periodCacheKey(q.Category, period), snapshot.ID, h.ttl); err != nil {
			h.log.Warn("failed to cache period mapping", logger.SnapshotID(snapshot.ID), logger.Err(err))
		}
	}

	return pageFromSnapshot(snapshot, page, pageSize), nil
}

func (h *LeaderboardHandler) periodCacheKey(category ranking.Category, period timeutil.Period) string {
	return redisinfra.PrefixLeaderboard + "period:" + string(category) + ":" + period.Key()
}

// pageFromSnapshot slices a page straight from the loaded snapshot.
func pageFromSnapshot(snapshot *ranking.Snapshot, page, pageSize int) *redisinfra.LeaderboardPage {
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(snapshot.Entries) {
		start = len(snapshot.Entries)
	}
	if end > len(snapshot.Entries) {
		end = len(snapshot.Entries)
	}

	totalPages := (snapshot.TotalUsers + pageSize - 1) / pageSize

	return &redisinfra.LeaderboardPage{
		SnapshotID: snapshot.ID,
		Category:   string(snapshot.Category),
		Month:      snapshot.Month,
		Year:       snapshot.Year,
		Entries:    snapshot.Entries[start:end],
		TotalCount: snapshot.TotalUsers,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && snapshot.TotalUsers > 0,
	}
}
