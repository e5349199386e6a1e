package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrLeaderboardEmpty is returned when a cached snapshot has no entries.
	ErrLeaderboardEmpty = errors.New("leaderboard_cache: leaderboard is empty")

	// ErrUserNotRanked is returned when the user is not in the cached snapshot.
	ErrUserNotRanked = errors.New("leaderboard_cache: user not ranked")

	// ErrInvalidPageParams is returned when invalid pagination parameters are provided.
	ErrInvalidPageParams = errors.New("leaderboard_cache: invalid page parameters")
)

// ══════════════════════════════════════════════════════════════════════════════
// PAGE STRUCTURES
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardPage is one page of a cached ranking snapshot.
type LeaderboardPage struct {
	SnapshotID string          `json:"snapshot_id"`
	Category   string          `json:"category"`
	Month      int             `json:"month"`
	Year       int             `json:"year"`
	Entries    []ranking.Entry `json:"entries"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	HasNext    bool            `json:"has_next"`
	HasPrev    bool            `json:"has_prev"`
}

// leaderboardMeta is the cached snapshot header.
type leaderboardMeta struct {
	SnapshotID string    `json:"snapshot_id"`
	Category   string    `json:"category"`
	Month      int       `json:"month"`
	Year       int       `json:"year"`
	TotalUsers int       `json:"total_users"`
	CachedAt   time.Time `json:"cached_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardCache serves ranking snapshot pages from Redis Sorted Sets.
//
// Architecture:
//   - Sorted Set "leaderboard:ranks:{snapshotID}" stores userID -> rank
//   - Hash "leaderboard:entries:{snapshotID}" stores userID -> Entry JSON
//   - String "leaderboard:meta:{snapshotID}" stores the snapshot header
//
// Snapshots are immutable once built, so the cache never has to track
// score changes; the sorted set exists for O(log N + M) page reads and
// O(log N) rank lookups.
type LeaderboardCache struct {
	cache *Cache
	ttl   time.Duration
}

// Key patterns for leaderboard cache.
const (
	keyLeaderboardRanks   = PrefixLeaderboard + "ranks:"
	keyLeaderboardEntries = PrefixLeaderboard + "entries:"
	keyLeaderboardMeta    = PrefixLeaderboard + "meta:"
)

// NewLeaderboardCache creates a new LeaderboardCache. A non-positive ttl
// falls back to TTLLeaderboard.
func NewLeaderboardCache(cache *Cache, ttl time.Duration) *LeaderboardCache {
	if ttl <= 0 {
		ttl = TTLLeaderboard
	}
	return &LeaderboardCache{cache: cache, ttl: ttl}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Store caches a full snapshot, replacing any previous data for its ID.
func (l *LeaderboardCache) Store(ctx context.Context, snapshot *ranking.Snapshot) error {
	if snapshot == nil || snapshot.ID == "" {
		return ErrCacheNilValue
	}

	ranksKey := keyLeaderboardRanks + snapshot.ID
	entriesKey := keyLeaderboardEntries + snapshot.ID
	metaKey := keyLeaderboardMeta + snapshot.ID

	pipe := l.cache.Client().TxPipeline()

	pipe.Del(ctx, ranksKey, entriesKey)

	zMembers := make([]redis.Z, 0, len(snapshot.Entries))
	hashData := make(map[string]interface{}, len(snapshot.Entries))

	for _, entry := range snapshot.Entries {
		member := strconv.FormatInt(entry.UserID, 10)
		zMembers = append(zMembers, redis.Z{
			Score:  float64(entry.Rank),
			Member: member,
		})

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
		}
		hashData[member] = data
	}

	if len(zMembers) > 0 {
		pipe.ZAdd(ctx, ranksKey, zMembers...)
		pipe.HSet(ctx, entriesKey, hashData)
	}

	meta := leaderboardMeta{
		SnapshotID: snapshot.ID,
		Category:   string(snapshot.Category),
		Month:      snapshot.Month,
		Year:       snapshot.Year,
		TotalUsers: snapshot.TotalUsers,
		CachedAt:   time.Now().UTC(),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	pipe.Set(ctx, metaKey, metaData, l.ttl)

	pipe.Expire(ctx, ranksKey, l.ttl)
	pipe.Expire(ctx, entriesKey, l.ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate drops all cached data for a snapshot.
func (l *LeaderboardCache) Invalidate(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Delete(ctx,
		keyLeaderboardRanks+snapshotID,
		keyLeaderboardEntries+snapshotID,
		keyLeaderboardMeta+snapshotID,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Page reads one page of the cached snapshot, ordered by rank.
// Returns ErrCacheMiss when the snapshot is not cached.
func (l *LeaderboardCache) Page(ctx context.Context, snapshotID string, page, pageSize int) (*LeaderboardPage, error) {
	if snapshotID == "" {
		return nil, ErrCacheKeyEmpty
	}
	if page < 1 || pageSize < 1 {
		return nil, ErrInvalidPageParams
	}

	var meta leaderboardMeta
	if err := l.cache.Get(ctx, keyLeaderboardMeta+snapshotID, &meta); err != nil {
		return nil, err
	}

	start := int64((page - 1) * pageSize)
	stop := start + int64(pageSize) - 1

	members, err := l.cache.Client().ZRange(ctx, keyLeaderboardRanks+snapshotID, start, stop).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]ranking.Entry, 0, len(members))
	if len(members) > 0 {
		values, err := l.cache.Client().HMGet(ctx, keyLeaderboardEntries+snapshotID, members...).Result()
		if err != nil {
			return nil, err
		}

		for _, val := range values {
			raw, ok := val.(string)
			if !ok {
				continue
			}
			var entry ranking.Entry
			if err := json.Unmarshal([]byte(raw), &entry); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			entries = append(entries, entry)
		}
	}

	totalPages := (meta.TotalUsers + pageSize - 1) / pageSize

	return &LeaderboardPage{
		SnapshotID: meta.SnapshotID,
		Category:   meta.Category,
		Month:      meta.Month,
		Year:       meta.Year,
		Entries:    entries,
		TotalCount: meta.TotalUsers,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1 && meta.TotalUsers > 0,
	}, nil
}

// EntryFor returns a single user's cached entry.
// Returns ErrUserNotRanked when the user is absent from the snapshot.
func (l *LeaderboardCache) EntryFor(ctx context.Context, snapshotID string, userID int64) (*ranking.Entry, error) {
	if snapshotID == "" {
		return nil, ErrCacheKeyEmpty
	}

	raw, err := l.cache.Client().HGet(ctx, keyLeaderboardEntries+snapshotID, strconv.FormatInt(userID, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotRanked
		}
		return nil, err
	}

	var entry ranking.Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	return &entry, nil
}
