package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
)

// AccountService implements user registration and credential checks.
type AccountService struct {
	repo   ports.UserRepository
	hasher ports.PasswordHasher
	log    zerolog.Logger
	now    func() time.Time

	// dummyHash is compared against when no account matches, so unknown
	// emails cost the same hash verification as wrong passwords.
	dummyHash string
}

// NewAccountService returns an AccountService. It fails only if the hasher
// cannot produce the placeholder hash used for unknown accounts.
func NewAccountService(repo ports.UserRepository, hasher ports.PasswordHasher, log zerolog.Logger) (*AccountService, error) {
	dummyHash, err := hasher.Hash(randomSecret())
	if err != nil {
		return nil, fmt.Errorf("account service: placeholder hash: %w", err)
	}
	return &AccountService{
		repo:      repo,
		hasher:    hasher,
		log:       log,
		now:       time.Now,
		dummyHash: dummyHash,
	}, nil
}

// CreateUser validates in, hashes the password and persists the record.
//
// Every rule is evaluated; the returned *domain.ValidationErrors lists all
// failures at once. The email uniqueness pre-check gives the caller a
// complete report, but the storage insert is what actually enforces it.
func (s *AccountService) CreateUser(ctx context.Context, in domain.NewUserInput) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)

	verrs := &domain.ValidationErrors{}
	if name == "" {
		verrs.Add(domain.FieldName, domain.ViolationBlank)
	}
	if email == "" {
		verrs.Add(domain.FieldEmail, domain.ViolationBlank)
	} else {
		taken, err := s.emailTaken(ctx, email)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		if taken {
			verrs.Add(domain.FieldEmail, domain.ViolationTaken)
		}
	}
	if utf8.RuneCountInString(in.Password) < domain.MinPasswordLength {
		verrs.Add(domain.FieldPassword, domain.ViolationTooShort)
	}
	if len(in.Password) > domain.MaxPasswordBytes {
		verrs.Add(domain.FieldPassword, domain.ViolationTooLong)
	}
	if in.Password != in.PasswordConfirmation {
		verrs.Add(domain.FieldPasswordConfirmation, domain.ViolationConfirmation)
	}

	if !verrs.Empty() {
		s.log.Debug().
			Str("email", email).
			Strs("violations", verrs.Messages()).
			Msg("user rejected")
		return nil, verrs
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("create user: hash password: %w", err)
	}

	now := s.now().UTC()
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.InsertIfUniqueNormalizedEmail(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			// Lost a race with a concurrent registration for the same address.
			verrs.Add(domain.FieldEmail, domain.ViolationTaken)
			return nil, verrs
		}
		s.log.Error().Err(err).Str("email", email).Msg("failed to persist user")
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info().Str("user_id", created.ID).Str("email", created.Email).Msg("user created")
	return created, nil
}

// AuthenticateWithCredentials reports whether password matches the account
// registered under the normalized form of email. The password is compared
// exactly as given.
func (s *AccountService) AuthenticateWithCredentials(ctx context.Context, email, password string) (bool, error) {
	normalized := domain.NormalizeEmail(email)
	if normalized == "" {
		s.hasher.Compare(s.dummyHash, password)
		return false, nil
	}

	user, err := s.repo.FindByNormalizedEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Compare(s.dummyHash, password)
			s.log.Debug().Str("email", normalized).Msg("authentication failed: unknown email")
			return false, nil
		}
		return false, fmt.Errorf("authenticate: %w", err)
	}

	if !s.hasher.Compare(user.PasswordHash, password) {
		s.log.Debug().Str("user_id", user.ID).Msg("authentication failed: password mismatch")
		return false, nil
	}
	return true, nil
}

func (s *AccountService) emailTaken(ctx context.Context, email string) (bool, error) {
	_, err := s.repo.FindByNormalizedEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrUserNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check email: %w", err)
	}
}

func randomSecret() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
