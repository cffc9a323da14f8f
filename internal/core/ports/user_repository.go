package ports

import (
	"context"

	"github.com/99minutos/accounts/internal/core/domain"
)

// UserRepository defines the persistence contract for user records.
// Implementations key every lookup on the normalized email and must enforce
// email uniqueness atomically at write time.
type UserRepository interface {
	// FindByNormalizedEmail returns domain.ErrUserNotFound when no record matches.
	FindByNormalizedEmail(ctx context.Context, email string) (*domain.User, error)
	// InsertIfUniqueNormalizedEmail assigns the ID and persists user, or returns
	// domain.ErrEmailTaken when another record already holds the email.
	InsertIfUniqueNormalizedEmail(ctx context.Context, user *domain.User) (*domain.User, error)
}
