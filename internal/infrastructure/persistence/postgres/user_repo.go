// Package postgres implements the PostgreSQL persistence layer for the
// rewards hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository and ranking.EntrySource for
// PostgreSQL. Ranking happens in SQL with the expression from
// ranking.ScoreSQL so the database never sees a second score definition.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

const userColumns = `
	id, display_name, role, active,
	total_tests, correct_answers, total_questions,
	tests_created, student_attempts,
	coins, total_xp, level, badges,
	created_at, updated_at
`

// GetByID returns a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s FROM users WHERE id = $1
	`, userColumns), id)

	u, err := scanUser(row)
	if IsNoRows(err) {
		return nil, shared.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// ListActiveByRole returns all active users with the given role, ordered
// by ID ascending.
func (r *UserRepository) ListActiveByRole(ctx context.Context, role user.Role) ([]*user.User, error) {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM users
		WHERE active AND role = $1
		ORDER BY id ASC
	`, userColumns), string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []*user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// LiveEntries ranks the category's active users directly in SQL. The
// ORDER BY mirrors the snapshot builder: score descending, user ID
// ascending as the tie-break. Dense ranks follow from the row order.
func (r *UserRepository) LiveEntries(ctx context.Context, category ranking.Category) ([]ranking.Entry, error) {
	if !category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	scoreExpr := ranking.ScoreSQL(category)
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT id, display_name, %s AS score
		FROM users
		WHERE active AND role = $1
		ORDER BY score DESC, id ASC
	`, scoreExpr), string(category.Role()))
	if err != nil {
		return nil, fmt.Errorf("failed to rank users: %w", err)
	}
	defer rows.Close()

	var entries []ranking.Entry
	for rows.Next() {
		var e ranking.Entry
		if err := rows.Scan(&e.UserID, &e.DisplayName, &e.Score); err != nil {
			return nil, fmt.Errorf("failed to scan ranked user: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ranking.AssignRanks(entries)
	return entries, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// SCAN HELPERS
// ─────────────────────────────────────────────────────────────────────────────

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*user.User, error) {
	var u user.User
	var role string
	var badges []byte

	err := row.Scan(
		&u.ID,
		&u.DisplayName,
		&role,
		&u.Active,
		&u.Student.TotalTests,
		&u.Student.CorrectAnswers,
		&u.Student.TotalQuestions,
		&u.Teacher.TestsCreated,
		&u.Teacher.StudentAttempts,
		&u.Coins,
		&u.TotalXP,
		&u.Level,
		&badges,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = user.Role(role)
	if len(badges) > 0 {
		if err := json.Unmarshal(badges, &u.Badges); err != nil {
			return nil, fmt.Errorf("failed to decode badges: %w", err)
		}
	}
	return &u, nil
}
