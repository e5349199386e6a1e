// Package user contains the platform user aggregate as seen by the
// reward pipeline: role, activity counters and the reward wallet.
package user

import (
	"math"
	"strings"
	"time"

	"github.com/quizhub/rewards-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Role distinguishes the two ranked populations.
type Role string

const (
	// RoleStudent takes quizzes.
	RoleStudent Role = "student"

	// RoleTeacher creates quizzes.
	RoleTeacher Role = "teacher"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleTeacher
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// ParseRole parses a string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", shared.ErrInvalidRole
	}
	return r, nil
}

// XPPerLevel is the amount of cumulative XP that advances one level.
const XPPerLevel = 1000

// CalculateLevel returns the level for a cumulative XP total.
// Levels are 1-based and monotonically non-decreasing in XP.
func CalculateLevel(totalXP int) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return totalXP/XPPerLevel + 1
}

// ═══════════════════════════════════════════════════════════════════════════
// Counters
// ═══════════════════════════════════════════════════════════════════════════

// StudentStats holds the quiz-taking counters a student accumulates.
type StudentStats struct {
	TotalTests     int // completed quiz attempts
	CorrectAnswers int
	TotalQuestions int // questions seen across all attempts
}

// AccuracyPercent returns the rounded percentage of correct answers.
// A student who has seen no questions has zero accuracy, not a division error.
func (s StudentStats) AccuracyPercent() int {
	if s.TotalQuestions <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(s.CorrectAnswers) / float64(s.TotalQuestions)))
}

// TeacherStats holds the quiz-authoring counters a teacher accumulates.
type TeacherStats struct {
	TestsCreated    int
	StudentAttempts int // attempts by students on this teacher's tests
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge
// ═══════════════════════════════════════════════════════════════════════════

// Badge is a named monthly award attached to a user.
type Badge struct {
	Name      string    `json:"name"`
	Month     int       `json:"month"`
	Year      int       `json:"year"`
	AwardedAt time.Time `json:"awarded_at"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Entity
// ═══════════════════════════════════════════════════════════════════════════

// User is a platform user as the reward pipeline sees it.
type User struct {
	ID          int64
	DisplayName string
	Role        Role
	Active      bool

	Student StudentStats
	Teacher TeacherStats

	Coins   int
	TotalXP int
	Level   int
	Badges  []Badge

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUserParams contains parameters for creating a user.
type NewUserParams struct {
	ID          int64
	DisplayName string
	Role        Role
}

// NewUser creates a user with validation.
func NewUser(params NewUserParams) (*User, error) {
	if params.ID <= 0 {
		return nil, shared.WrapError("user", "Create", shared.ErrInvalidID, "user ID must be positive", nil)
	}
	if !params.Role.IsValid() {
		return nil, shared.ErrInvalidRole
	}

	now := time.Now()
	return &User{
		ID:          params.ID,
		DisplayName: strings.TrimSpace(params.DisplayName),
		Role:        params.Role,
		Active:      true,
		Level:       1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Credit adds coins and XP and recomputes the level from the new total.
// Negative amounts are ignored; credits only ever move forward.
func (u *User) Credit(coins, xp int) {
	if coins > 0 {
		u.Coins += coins
	}
	if xp > 0 {
		u.TotalXP += xp
	}
	u.Level = CalculateLevel(u.TotalXP)
	u.UpdatedAt = time.Now()
}

// HasBadgeForPeriod reports whether the user already holds a badge
// with this name for the given month.
func (u *User) HasBadgeForPeriod(name string, month, year int) bool {
	for _, b := range u.Badges {
		if b.Name == name && b.Month == month && b.Year == year {
			return true
		}
	}
	return false
}

// AddBadge appends a badge unless an identical one exists for the period.
func (u *User) AddBadge(name string, month, year int) bool {
	if name == "" || u.HasBadgeForPeriod(name, month, year) {
		return false
	}
	u.Badges = append(u.Badges, Badge{
		Name:      name,
		Month:     month,
		Year:      year,
		AwardedAt: time.Now(),
	})
	u.UpdatedAt = time.Now()
	return true
}

// IsActive reports whether the user participates in rankings.
func (u *User) IsActive() bool {
	return u.Active
}
