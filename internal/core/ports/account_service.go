package ports

import (
	"context"

	"github.com/99minutos/accounts/internal/core/domain"
)

// AccountService registers users and checks their credentials.
type AccountService interface {
	// CreateUser returns either the persisted user or a *domain.ValidationErrors.
	// Storage failures are returned as-is and never folded into validation errors.
	CreateUser(ctx context.Context, in domain.NewUserInput) (*domain.User, error)
	// AuthenticateWithCredentials reports whether password matches the account
	// registered under email. Unknown accounts and wrong passwords both yield
	// false with a nil error; only storage failures produce an error.
	AuthenticateWithCredentials(ctx context.Context, email, password string) (bool, error)
}
