package user

import "context"

// Repository provides read access to users for the reward pipeline.
// Writes to the wallet happen inside the reward ledger transaction and
// are owned by the reward repository.
type Repository interface {
	// GetByID returns a user by ID, or shared.ErrUserNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)

	// ListActiveByRole returns all active users with the given role,
	// ordered by ID ascending.
	ListActiveByRole(ctx context.Context, role Role) ([]*User, error)
}
