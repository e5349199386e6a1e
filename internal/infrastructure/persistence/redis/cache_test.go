package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	cache := NewCacheWithClient(client)
	t.Cleanup(func() { _ = cache.Close() })

	return cache, mr
}

func TestCacheSetGetRoundtrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Coins int    `json:"coins"`
	}

	err := cache.Set(ctx, "test:payload", payload{Name: "aliya", Coins: 500}, time.Minute)
	require.NoError(t, err)

	var got payload
	require.NoError(t, cache.Get(ctx, "test:payload", &got))
	assert.Equal(t, "aliya", got.Name)
	assert.Equal(t, 500, got.Coins)
}

func TestCacheGetMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	var dest map[string]string
	err := cache.Get(context.Background(), "missing", &dest)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCacheValidation(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	assert.ErrorIs(t, cache.Set(ctx, "", "v", time.Minute), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, time.Minute), ErrCacheNilValue)
	assert.ErrorIs(t, cache.Set(ctx, "k", "v", -time.Second), ErrCacheInvalidTTL)
}

func TestCacheDelete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetString(ctx, "a", "1", time.Minute))
	require.NoError(t, cache.SetString(ctx, "b", "2", time.Minute))

	require.NoError(t, cache.Delete(ctx, "a", "b"))

	exists, err := cache.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCacheDeleteByPattern(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetString(ctx, RewardHistoryKey(42, 10), "h1", time.Minute))
	require.NoError(t, cache.SetString(ctx, RewardHistoryKey(42, 20), "h2", time.Minute))
	require.NoError(t, cache.SetString(ctx, RewardHistoryKey(7, 10), "other", time.Minute))

	require.NoError(t, cache.DeleteByPattern(ctx, PrefixRewardHistory+"42:*"))

	exists, err := cache.Exists(ctx, RewardHistoryKey(42, 10))
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = cache.Exists(ctx, RewardHistoryKey(7, 10))
	require.NoError(t, err)
	assert.True(t, exists, "unrelated user's history should survive")
}

func TestCacheSetNX(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.SetNX(ctx, LockKey("rewards:init"), "owner-1", TTLDistributedLock)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, LockKey("rewards:init"), "owner-2", TTLDistributedLock)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire must fail while lock is held")
}

// ─────────────────────────────────────────────────────────────────────────────
// LEADERBOARD CACHE
// ─────────────────────────────────────────────────────────────────────────────

func testSnapshot(t *testing.T, entryCount int) *ranking.Snapshot {
	t.Helper()

	entries := make([]ranking.Entry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		entries = append(entries, ranking.Entry{
			UserID:      int64(i + 1),
			DisplayName: "user",
			Score:       1000 - i,
			Rank:        i + 1,
		})
	}

	period, err := timeutil.NewPeriod(3, 2025)
	require.NoError(t, err)

	snapshot, err := ranking.NewSnapshot("11111111-2222-3333-4444-555555555555", ranking.CategoryStudents, period, entries)
	require.NoError(t, err)
	return snapshot
}

func TestLeaderboardCachePage(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	snapshot := testSnapshot(t, 25)
	require.NoError(t, lc.Store(ctx, snapshot))

	page, err := lc.Page(ctx, snapshot.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 10)
	assert.Equal(t, 1, page.Entries[0].Rank)
	assert.Equal(t, 10, page.Entries[9].Rank)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.HasNext)
	assert.False(t, page.HasPrev)

	page, err = lc.Page(ctx, snapshot.ID, 3, 10)
	require.NoError(t, err)
	assert.Len(t, page.Entries, 5)
	assert.Equal(t, 21, page.Entries[0].Rank)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrev)
}

func TestLeaderboardCachePageMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)

	_, err := lc.Page(context.Background(), "missing-snapshot", 1, 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestLeaderboardCacheEntryFor(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	snapshot := testSnapshot(t, 5)
	require.NoError(t, lc.Store(ctx, snapshot))

	entry, err := lc.EntryFor(ctx, snapshot.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Rank)

	_, err = lc.EntryFor(ctx, snapshot.ID, 999)
	assert.ErrorIs(t, err, ErrUserNotRanked)
}

func TestLeaderboardCacheInvalidate(t *testing.T) {
	cache, _ := newTestCache(t)
	lc := NewLeaderboardCache(cache, time.Minute)
	ctx := context.Background()

	snapshot := testSnapshot(t, 5)
	require.NoError(t, lc.Store(ctx, snapshot))
	require.NoError(t, lc.Invalidate(ctx, snapshot.ID))

	_, err := lc.Page(ctx, snapshot.ID, 1, 10)
	assert.ErrorIs(t, err, ErrCacheMiss)
}
