// Package memory provides in-memory repository implementations. They
// back unit tests and local development without a database, and must
// mirror the semantics of the PostgreSQL implementations: the same
// sentinel errors, the same ordering, the same idempotency rules.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/quizhub/rewards-hub/internal/domain/ranking"
	"github.com/quizhub/rewards-hub/internal/domain/shared"
	"github.com/quizhub/rewards-hub/internal/domain/user"
)

// UserRepository implements user.Repository and ranking.EntrySource
// over a mutex-guarded map.
type UserRepository struct {
	mu    sync.RWMutex
	users map[int64]*user.User
}

// NewUserRepository creates an empty in-memory user repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[int64]*user.User)}
}

// Add stores a user, replacing any existing user with the same ID.
func (r *UserRepository) Add(u *user.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

// GetByID returns a copy of the user, or shared.ErrUserNotFound.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// ListActiveByRole returns active users with the role, ordered by ID.
func (r *UserRepository) ListActiveByRole(_ context.Context, role user.Role) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*user.User
	for _, u := range r.users {
		if u.Active && u.Role == role {
			users = append(users, cloneUser(u))
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// LiveEntries ranks the category's active users in process with the
// same ordering the SQL implementation produces.
func (r *UserRepository) LiveEntries(_ context.Context, category ranking.Category) ([]ranking.Entry, error) {
	if !category.IsValid() {
		return nil, shared.ErrInvalidCategory
	}

	r.mu.RLock()
	users := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()

	return ranking.BuildEntries(users, category), nil
}

// credit applies a wallet credit under the lock. Used by the in-memory
// ledger so the award stays atomic from the caller's point of view.
func (r *UserRepository) credit(userID int64, coins, xp int, badge string, month, year int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return 0, shared.ErrUserNotFound
	}

	u.Credit(coins, xp)
	if badge != "" {
		u.AddBadge(badge, month, year)
	}
	return u.Level, nil
}

func cloneUser(u *user.User) *user.User {
	clone := *u
	if u.Badges != nil {
		clone.Badges = append([]user.Badge(nil), u.Badges...)
	}
	return &clone
}
