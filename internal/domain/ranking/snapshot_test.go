package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/rewards-hub/internal/domain/user"
	"github.com/quizhub/rewards-hub/pkg/timeutil"
)

func student(id int64, tests, correct, questions int) *user.User {
	return &user.User{
		ID:     id,
		Role:   user.RoleStudent,
		Active: true,
		Student: user.StudentStats{
			TotalTests:     tests,
			CorrectAnswers: correct,
			TotalQuestions: questions,
		},
	}
}

func TestBuildEntries_DenseRanksAndOrdering(t *testing.T) {
	users := []*user.User{
		student(3, 1, 0, 0),  // score 10
		student(1, 5, 10, 10), // score 1050
		student(2, 5, 10, 10), // score 1050, tie with user 1
		student(4, 0, 0, 0),  // score 0
	}

	entries := BuildEntries(users, CategoryStudents)
	require.Len(t, entries, 4)

	// score desc, ties broken by user ID asc
	assert.Equal(t, int64(1), entries[0].UserID)
	assert.Equal(t, int64(2), entries[1].UserID)
	assert.Equal(t, int64(3), entries[2].UserID)
	assert.Equal(t, int64(4), entries[3].UserID)

	// dense 1..N even for equal scores
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestBuildEntries_AllEqualScores(t *testing.T) {
	users := []*user.User{student(9, 1, 1, 1), student(3, 1, 1, 1), student(5, 1, 1, 1)}

	entries := BuildEntries(users, CategoryStudents)
	require.Len(t, entries, 3)

	assert.Equal(t, []int64{3, 5, 9}, []int64{entries[0].UserID, entries[1].UserID, entries[2].UserID})
	assert.Equal(t, []int{1, 2, 3}, []int{entries[0].Rank, entries[1].Rank, entries[2].Rank})
}

func TestBuildEntries_FiltersInactiveAndWrongRole(t *testing.T) {
	inactive := student(1, 5, 5, 5)
	inactive.Active = false
	teacher := &user.User{ID: 2, Role: user.RoleTeacher, Active: true}

	entries := BuildEntries([]*user.User{inactive, teacher, student(3, 1, 0, 0)}, CategoryStudents)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].UserID)
}

func TestBuildEntries_Deterministic(t *testing.T) {
	users := []*user.User{student(4, 2, 3, 4), student(2, 2, 3, 4), student(7, 9, 0, 0)}

	first := BuildEntries(users, CategoryStudents)
	second := BuildEntries(users, CategoryStudents)
	assert.Equal(t, first, second)
}

func TestNewSnapshot_Validation(t *testing.T) {
	period := timeutil.Period{Month: 6, Year: 2025}

	_, err := NewSnapshot("", CategoryStudents, period, nil)
	assert.Error(t, err)

	_, err = NewSnapshot("id-1", Category("bots"), period, nil)
	assert.Error(t, err)

	_, err = NewSnapshot("id-1", CategoryStudents, timeutil.Period{Month: 13, Year: 2025}, nil)
	assert.Error(t, err)

	s, err := NewSnapshot("id-1", CategoryStudents, period, []Entry{{UserID: 1, Rank: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, s.TotalUsers)
	assert.False(t, s.Processed)
}

func TestSnapshot_Batch(t *testing.T) {
	entries := make([]Entry, 120)
	for i := range entries {
		entries[i] = Entry{UserID: int64(i + 1), Rank: i + 1}
	}
	s, err := NewSnapshot("id-1", CategoryStudents, timeutil.Period{Month: 6, Year: 2025}, entries)
	require.NoError(t, err)

	assert.Equal(t, 3, s.TotalBatches(50))
	assert.Len(t, s.Batch(0, 50), 50)
	assert.Len(t, s.Batch(1, 50), 50)
	assert.Len(t, s.Batch(2, 50), 20)

	// past the last batch: empty, the processor's completion signal
	assert.Empty(t, s.Batch(3, 50))
	assert.Empty(t, s.Batch(99, 50))

	assert.Equal(t, int64(51), s.Batch(1, 50)[0].UserID)
}

func TestSnapshot_MarkProcessed_Idempotent(t *testing.T) {
	s, err := NewSnapshot("id-1", CategoryTeachers, timeutil.Period{Month: 1, Year: 2025}, nil)
	require.NoError(t, err)

	s.MarkProcessed()
	require.NotNil(t, s.ProcessedAt)
	first := *s.ProcessedAt

	s.MarkProcessed()
	assert.Equal(t, first, *s.ProcessedAt)
}
