package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/core/domain"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/metrics"
)

const defaultCacheTTL = 10 * time.Minute

// UserCache is a read-through cache in front of a ports.UserRepository.
// Key format: user:email:<normalized_email>
//
// Only found records are cached; a miss always reaches the backing store, so
// a freshly inserted user is visible immediately. Redis failures degrade to
// the backing store and never fail the call.
type UserCache struct {
	next   ports.UserRepository
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewUserCache wraps next. A non-positive ttl selects defaultCacheTTL.
func NewUserCache(next ports.UserRepository, client *redis.Client, ttl time.Duration, log zerolog.Logger) *UserCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &UserCache{next: next, client: client, ttl: ttl, log: log}
}

type cachedUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (c *UserCache) FindByNormalizedEmail(ctx context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)

	user, err := c.get(ctx, email)
	switch {
	case err == nil:
		metrics.UserCacheTotal.WithLabelValues("hit").Inc()
		return user, nil
	case errors.Is(err, redis.Nil):
		metrics.UserCacheTotal.WithLabelValues("miss").Inc()
	default:
		metrics.UserCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("email", email).Msg("user cache read failed, falling back to store")
	}

	user, err = c.next.FindByNormalizedEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	c.set(ctx, user)
	return user, nil
}

func (c *UserCache) InsertIfUniqueNormalizedEmail(ctx context.Context, user *domain.User) (*domain.User, error) {
	created, err := c.next.InsertIfUniqueNormalizedEmail(ctx, user)
	if err != nil {
		return nil, err
	}
	c.set(ctx, created)
	return created, nil
}

func (c *UserCache) get(ctx context.Context, email string) (*domain.User, error) {
	raw, err := c.client.Get(ctx, c.key(email)).Bytes()
	if err != nil {
		return nil, err
	}

	var cu cachedUser
	if err := json.Unmarshal(raw, &cu); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &domain.User{
		ID:           cu.ID,
		Name:         cu.Name,
		Email:        cu.Email,
		PasswordHash: cu.PasswordHash,
		CreatedAt:    cu.CreatedAt,
		UpdatedAt:    cu.UpdatedAt,
	}, nil
}

func (c *UserCache) set(ctx context.Context, user *domain.User) {
	raw, err := json.Marshal(cachedUser{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	})
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to encode user for cache")
		return
	}
	if err := c.client.Set(ctx, c.key(user.Email), raw, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to cache user")
	}
}

func (c *UserCache) key(email string) string {
	return "user:email:" + domain.NormalizeEmail(email)
}
