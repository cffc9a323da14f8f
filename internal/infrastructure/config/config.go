package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	HasherBcrypt   = "bcrypt"
	HasherArgon2id = "argon2id"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`
	Storage  string `env:"STORAGE,   default=mongo"`

	Password PasswordConfig
	Mongo    MongoConfig
	Redis    RedisConfig
}

type PasswordConfig struct {
	Hasher     string `env:"PASSWORD_HASHER, default=bcrypt"`
	BcryptCost int    `env:"BCRYPT_COST,     default=12"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=accounts"`
}

type RedisConfig struct {
	Enabled  bool          `env:"REDIS_ENABLED,   default=false"`
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	CacheTTL time.Duration `env:"REDIS_CACHE_TTL, default=10m"`
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("config: unknown STORAGE %q (want %s or %s)", c.Storage, StorageMongo, StorageMemory)
	}
	switch c.Password.Hasher {
	case HasherBcrypt, HasherArgon2id:
	default:
		return fmt.Errorf("config: unknown PASSWORD_HASHER %q (want %s or %s)", c.Password.Hasher, HasherBcrypt, HasherArgon2id)
	}
	if c.IsProduction() && c.Storage == StorageMemory {
		return fmt.Errorf("config: STORAGE=%s is not allowed in production", StorageMemory)
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) *Config {
	cfg, err := LoadFrom(ctx, envconfig.OsLookuper())
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadFrom reads configuration through lookuper and validates it.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
