// Package ranking implements the monthly ranking model: the score
// function, the ranked snapshot and its builder.
package ranking

import (
	"fmt"
	"strings"

	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
)

// ═══════════════════════════════════════════════════════════════════════════
// Category
// ═══════════════════════════════════════════════════════════════════════════

// Category is a ranked population. Each category is ranked and rewarded
// independently within a period.
type Category string

const (
	// CategoryStudents ranks quiz takers.
	CategoryStudents Category = "students"

	// CategoryTeachers ranks quiz authors.
	CategoryTeachers Category = "teachers"
)

// AllCategories lists every category processed in a reward cycle.
var AllCategories = []Category{CategoryStudents, CategoryTeachers}

// IsValid checks if the category is known.
func (c Category) IsValid() bool {
	return c == CategoryStudents || c == CategoryTeachers
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// Role returns the user role ranked by this category.
func (c Category) Role() user.Role {
	if c == CategoryTeachers {
		return user.RoleTeacher
	}
	return user.RoleStudent
}

// ParseCategory parses a string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", shared.ErrInvalidCategory
	}
	return c, nil
}

// CategoryForRole returns the category that ranks the given role.
func CategoryForRole(r user.Role) Category {
	if r == user.RoleTeacher {
		return CategoryTeachers
	}
	return CategoryStudents
}

// ═══════════════════════════════════════════════════════════════════════════
// Score Function
// ═══════════════════════════════════════════════════════════════════════════

// Score weights. This is the single source of truth for the score
// function: both the in-process evaluator and the SQL expression below
// are generated from these constants. Changing a weight here changes
// both adapters at once.
const (
	// StudentTestsWeight multiplies the number of completed tests.
	StudentTestsWeight = 10

	// StudentAccuracyWeight multiplies the rounded accuracy percentage.
	StudentAccuracyWeight = 10

	// TeacherTestsWeight multiplies the number of tests created.
	TeacherTestsWeight = 10

	// TeacherAttemptsWeight multiplies student attempts on the teacher's tests.
	TeacherAttemptsWeight = 10
)

// StudentScore computes the ranking score for a student's counters.
// A student with zero counters scores exactly zero.
func StudentScore(s user.StudentStats) int {
	return s.TotalTests*StudentTestsWeight + s.AccuracyPercent()*StudentAccuracyWeight
}

// TeacherScore computes the ranking score for a teacher's counters.
func TeacherScore(t user.TeacherStats) int {
	return t.TestsCreated*TeacherTestsWeight + t.StudentAttempts*TeacherAttemptsWeight
}

// ScoreUser evaluates the score function for a user in the given category.
// Pure: reads counters only, never mutates.
func ScoreUser(u *user.User, category Category) int {
	if category == CategoryTeachers {
		return TeacherScore(u.Teacher)
	}
	return StudentScore(u.Student)
}

// ScoreSQL returns the Postgres expression computing the same score the
// in-process evaluator computes, over the users table columns. The
// accuracy term divides by NULLIF so a student with no questions scores
// zero instead of raising division by zero; ROUND on numeric matches
// Go's math.Round (half away from zero).
func ScoreSQL(category Category) string {
	if category == CategoryTeachers {
		return fmt.Sprintf(
			"(tests_created * %d + student_attempts * %d)",
			TeacherTestsWeight, TeacherAttemptsWeight,
		)
	}
	return fmt.Sprintf(
		"(total_tests * %d + COALESCE(ROUND(100.0 * correct_answers / NULLIF(total_questions, 0)), 0)::int * %d)",
		StudentTestsWeight, StudentAccuracyWeight,
	)
}
