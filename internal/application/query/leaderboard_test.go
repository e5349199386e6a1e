package query

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
	"github.com/quizhub/rewards-hub/pkg/logger"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard, Level: logger.LevelError})
}

func seedSnapshot(t *testing.T, repo *memory.SnapshotRepository, n int) *ranking.Snapshot {
	t.Helper()

	entries := make([]ranking.Entry, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, ranking.Entry{
			UserID:      int64(i),
			DisplayName: fmt.Sprintf("student-%d", i),
			Score:       10 * (n - i + 1),
			Rank:        i,
		})
	}

	period, err := timeutil.NewPeriod(2, 2025)
	require.NoError(t, err)
	snapshot, err := ranking.NewSnapshot("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", ranking.CategoryStudents, period, entries)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), snapshot))
	return snapshot
}

func TestLeaderboardPageWithoutCache(t *testing.T) {
	snapshots := memory.NewSnapshotRepository()
	seedSnapshot(t, snapshots, 30)

	handler := NewLeaderboardHandler(snapshots, nil, nil, 0, quietLogger())

	page, err := handler.Handle(context.Background(), LeaderboardQuery{
		Category: ranking.CategoryStudents,
		Month:    2,
		Year:     2025,
		Page:     2,
		PageSize: 25,
	})
	require.NoError(t, err)
	assert.Len(t, page.Entries, 5)
	assert.Equal(t, 26, page.Entries[0].Rank)
	assert.Equal(t, 30, page.TotalCount)
	assert.True(t, page.HasPrev)
	assert.False(t, page.HasNext)
}

func TestLeaderboardUsesCacheOnSecondRead(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache := redisinfra.NewCacheWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })
	lc := redisinfra.NewLeaderboardCache(cache, time.Minute)

	snapshots := memory.NewSnapshotRepository()
	snapshot := seedSnapshot(t, snapshots, 10)

	handler := NewLeaderboardHandler(snapshots, lc, cache, time.Minute, quietLogger())

	query := LeaderboardQuery{Category: ranking.CategoryStudents, Month: 2, Year: 2025, Page: 1, PageSize: 5}

	first, err := handler.Handle(context.Background(), query)
	require.NoError(t, err)
	require.Len(t, first.Entries, 5)

	// The snapshot is now cached under its period mapping.
	assert.True(t, mr.Exists(redisinfra.PrefixLeaderboard+"period:students:2025-02"))

	second, err := handler.Handle(context.Background(), query)
	require.NoError(t, err)
	assert.Equal(t, first.Entries, second.Entries)
	assert.Equal(t, snapshot.ID, second.SnapshotID)
}

func TestLeaderboardUnknownPeriod(t *testing.T) {
	handler := NewLeaderboardHandler(memory.NewSnapshotRepository(), nil, nil, 0, quietLogger())

	_, err := handler.Handle(context.Background(), LeaderboardQuery{
		Category: ranking.CategoryStudents,
		Month:    1,
		Year:     2020,
	})
	assert.ErrorIs(t, err, shared.ErrSnapshotNotFound)
}

func TestLeaderboardValidation(t *testing.T) {
	handler := NewLeaderboardHandler(memory.NewSnapshotRepository(), nil, nil, 0, quietLogger())

	_, err := handler.Handle(context.Background(), LeaderboardQuery{Category: "referees"})
	assert.ErrorIs(t, err, shared.ErrInvalidCategory)

	_, err = handler.Handle(context.Background(), LeaderboardQuery{
		Category: ranking.CategoryStudents,
		Month:    5,
	})
	assert.Error(t, err, "month without year must be rejected")
}
