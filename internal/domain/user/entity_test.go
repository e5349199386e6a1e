package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateLevel(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{1001, 2},
		{4999, 5},
		{5000, 6},
		{-50, 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateLevel(tt.xp), "xp=%d", tt.xp)
	}
}

func TestCalculateLevel_Monotonic(t *testing.T) {
	prev := CalculateLevel(0)
	for xp := 1; xp <= 10_000; xp += 137 {
		level := CalculateLevel(xp)
		assert.GreaterOrEqual(t, level, prev)
		prev = level
	}
}

func TestStudentStats_AccuracyPercent(t *testing.T) {
	assert.Equal(t, 0, StudentStats{}.AccuracyPercent())
	assert.Equal(t, 0, StudentStats{CorrectAnswers: 5}.AccuracyPercent())
	assert.Equal(t, 50, StudentStats{CorrectAnswers: 1, TotalQuestions: 2}.AccuracyPercent())
	assert.Equal(t, 67, StudentStats{CorrectAnswers: 2, TotalQuestions: 3}.AccuracyPercent())
	assert.Equal(t, 100, StudentStats{CorrectAnswers: 10, TotalQuestions: 10}.AccuracyPercent())
}

func TestNewUser(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: 42, DisplayName: "  Aida  ", Role: RoleStudent})
	require.NoError(t, err)

	assert.Equal(t, int64(42), u.ID)
	assert.Equal(t, "Aida", u.DisplayName)
	assert.True(t, u.Active)
	assert.Equal(t, 1, u.Level)
}

func TestNewUser_Validation(t *testing.T) {
	_, err := NewUser(NewUserParams{ID: 0, Role: RoleStudent})
	assert.Error(t, err)

	_, err = NewUser(NewUserParams{ID: 1, Role: Role("admin")})
	assert.Error(t, err)
}

func TestUser_Credit(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: 1, Role: RoleStudent})
	require.NoError(t, err)

	u.Credit(500, 1500)
	assert.Equal(t, 500, u.Coins)
	assert.Equal(t, 1500, u.TotalXP)
	assert.Equal(t, 2, u.Level)

	// negative amounts are ignored
	u.Credit(-100, -100)
	assert.Equal(t, 500, u.Coins)
	assert.Equal(t, 1500, u.TotalXP)
}

func TestUser_AddBadge_DuplicateGuard(t *testing.T) {
	u, err := NewUser(NewUserParams{ID: 1, Role: RoleTeacher})
	require.NoError(t, err)

	assert.True(t, u.AddBadge("Champion", 6, 2025))
	assert.False(t, u.AddBadge("Champion", 6, 2025))
	assert.True(t, u.AddBadge("Champion", 7, 2025))
	assert.Len(t, u.Badges, 2)
	assert.True(t, u.HasBadgeForPeriod("Champion", 6, 2025))
	assert.False(t, u.HasBadgeForPeriod("Elite", 6, 2025))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Student ")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, r)

	_, err = ParseRole("admin")
	assert.Error(t, err)
}
