package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quizhub/rewards-hub/internal/domain/user"
)

func TestStudentScore(t *testing.T) {
	tests := []struct {
		name  string
		stats user.StudentStats
		want  int
	}{
		{
			name:  "zero counters score zero",
			stats: user.StudentStats{},
			want:  0,
		},
		{
			name:  "no questions means no accuracy term",
			stats: user.StudentStats{TotalTests: 3},
			want:  30,
		},
		{
			name:  "full accuracy",
			stats: user.StudentStats{TotalTests: 5, CorrectAnswers: 20, TotalQuestions: 20},
			want:  5*10 + 100*10,
		},
		{
			name:  "accuracy is rounded before weighting",
			stats: user.StudentStats{TotalTests: 1, CorrectAnswers: 2, TotalQuestions: 3}, // 66.67 -> 67
			want:  1*10 + 67*10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StudentScore(tt.stats))
		})
	}
}

func TestTeacherScore(t *testing.T) {
	assert.Equal(t, 0, TeacherScore(user.TeacherStats{}))
	assert.Equal(t, 10*10+200*10, TeacherScore(user.TeacherStats{TestsCreated: 10, StudentAttempts: 200}))
}

func TestScoreUser_DispatchesByCategory(t *testing.T) {
	u := &user.User{
		ID:      1,
		Role:    user.RoleStudent,
		Student: user.StudentStats{TotalTests: 2, CorrectAnswers: 1, TotalQuestions: 2},
		Teacher: user.TeacherStats{TestsCreated: 99},
	}

	assert.Equal(t, 2*10+50*10, ScoreUser(u, CategoryStudents))
	assert.Equal(t, 99*10, ScoreUser(u, CategoryTeachers))
}

func TestScoreUser_IsPure(t *testing.T) {
	u := &user.User{
		ID:      7,
		Role:    user.RoleStudent,
		Student: user.StudentStats{TotalTests: 4, CorrectAnswers: 8, TotalQuestions: 10},
	}
	before := *u

	first := ScoreUser(u, CategoryStudents)
	second := ScoreUser(u, CategoryStudents)

	assert.Equal(t, first, second)
	assert.Equal(t, before, *u)
}

// The SQL expression must be generated from the same weight constants as
// the in-process evaluator; a drift between the two would rank users
// differently depending on which adapter built the snapshot.
func TestScoreSQL_UsesSharedWeights(t *testing.T) {
	assert.Equal(t,
		"(total_tests * 10 + COALESCE(ROUND(100.0 * correct_answers / NULLIF(total_questions, 0)), 0)::int * 10)",
		ScoreSQL(CategoryStudents),
	)
	assert.Equal(t,
		"(tests_created * 10 + student_attempts * 10)",
		ScoreSQL(CategoryTeachers),
	)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" Students ")
	assert.NoError(t, err)
	assert.Equal(t, CategoryStudents, c)

	_, err = ParseCategory("admins")
	assert.Error(t, err)
}

func TestCategoryRoleRoundTrip(t *testing.T) {
	for _, c := range AllCategories {
		assert.Equal(t, c, CategoryForRole(c.Role()))
	}
}
