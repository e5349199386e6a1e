package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/reward"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/memory"
	redisinfra "github.com/quizhub/rewards-hub/internal/infrastructure/persistence/redis"
)

func seedLedger(t *testing.T) *memory.RewardLedger {
	t.Helper()

	users := memory.NewUserRepository()
	u, err := user.NewUser(user.NewUserParams{ID: 7, DisplayName: "student-7", Role: user.RoleStudent})
	require.NoError(t, err)
	users.Add(u)

	ledger := memory.NewRewardLedger(users)
	plan := reward.DefaultPlan()

	// Two months of rewards, awarded oldest first.
	for i, month := range []int{1, 2} {
		entry := ranking.Entry{UserID: 7, DisplayName: "student-7", Score: 100, Rank: i + 1}
		tier := reward.ResolveTier(entry.Rank)
		record, err := reward.NewRecord(
			fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1),
			entry, ranking.CategoryStudents, month, 2025, tier, plan.Payout(tier),
		)
		require.NoError(t, err)
		record.CreatedAt = time.Date(2025, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)

		result, err := ledger.Award(context.Background(), record)
		require.NoError(t, err)
		require.True(t, result.Granted)
	}

	return ledger
}

func TestRewardHistoryNewestFirst(t *testing.T) {
	handler := NewRewardHistoryHandler(seedLedger(t), nil, 0, quietLogger())

	result, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 7})
	require.NoError(t, err)
	require.Len(t, result.Rewards, 2)

	assert.Equal(t, 2, result.Rewards[0].Month)
	assert.Equal(t, "ELITE", result.Rewards[0].Tier)
	assert.Equal(t, 1, result.Rewards[1].Month)
	assert.Equal(t, "CHAMPION", result.Rewards[1].Tier)
}

func TestRewardHistoryLimitClamped(t *testing.T) {
	handler := NewRewardHistoryHandler(seedLedger(t), nil, 0, quietLogger())

	result, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 7, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Rewards, 1)
}

func TestRewardHistoryValidation(t *testing.T) {
	handler := NewRewardHistoryHandler(seedLedger(t), nil, 0, quietLogger())

	_, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 0})
	assert.ErrorIs(t, err, shared.ErrInvalidID)
}

func TestRewardHistoryServedFromCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cache := redisinfra.NewCacheWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	handler := NewRewardHistoryHandler(seedLedger(t), cache, time.Minute, quietLogger())

	first, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 7})
	require.NoError(t, err)
	assert.True(t, mr.Exists(redisinfra.RewardHistoryKey(7, DefaultHistoryLimit)))

	second, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, first.Rewards, second.Rewards)
}

func TestRewardHistoryEmptyForUnknownUser(t *testing.T) {
	handler := NewRewardHistoryHandler(seedLedger(t), nil, 0, quietLogger())

	result, err := handler.Handle(context.Background(), RewardHistoryQuery{UserID: 999})
	require.NoError(t, err)
	assert.Empty(t, result.Rewards)
}
