// Package memory holds a process-local UserRepository for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/99minutos/accounts/internal/core/domain"
)

// UserRepository stores users in a map keyed by normalized email.
// The uniqueness check and the insert happen under the same lock.
type UserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]*domain.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{byEmail: make(map[string]*domain.User)}
}

func (r *UserRepository) FindByNormalizedEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepository) InsertIfUniqueNormalizedEmail(_ context.Context, user *domain.User) (*domain.User, error) {
	key := domain.NormalizeEmail(user.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[key]; exists {
		return nil, domain.ErrEmailTaken
	}

	stored := cloneUser(user)
	stored.ID = uuid.NewString()
	stored.Email = key
	r.byEmail[key] = stored
	return cloneUser(stored), nil
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
