// Package shared contains common domain types, errors, and events
// that are used across all domain packages.
package shared

import (
	"fmt"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique platform user identifier.
// The quiz platform assigns numeric IDs; zero is never a valid ID.
type UserID int64

// IsValid checks if the user ID is valid (positive number).
func (u UserID) IsValid() bool {
	return u > 0
}

// Int64 returns the underlying int64 value.
func (u UserID) Int64() int64 {
	return int64(u)
}

// String returns the string representation.
func (u UserID) String() string {
	return fmt.Sprintf("%d", u)
}

// NewUserID creates a new UserID with validation.
func NewUserID(id int64) (UserID, error) {
	if id <= 0 {
		return 0, ErrInvalidID
	}
	return UserID(id), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination
// ═══════════════════════════════════════════════════════════════════════════

// Pagination holds page-based query parameters.
type Pagination struct {
	Page  int
	Limit int
}

// NewPagination creates a Pagination, clamping out-of-range values.
func NewPagination(page, limit, maxLimit int) Pagination {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Page: page, Limit: limit}
}

// Offset returns the zero-based item offset for the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns the number of pages needed for total items.
func (p Pagination) TotalPages(total int) int {
	if total <= 0 || p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}
