// Command server runs the accounts HTTP API.
//
// @title        Accounts API
// @version      1.0
// @description  User registration and credential checks.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/api"
	"github.com/99minutos/accounts/internal/api/handler"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/core/service"
	"github.com/99minutos/accounts/internal/infrastructure/config"
	"github.com/99minutos/accounts/internal/infrastructure/crypto"
	"github.com/99minutos/accounts/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/accounts/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/accounts/internal/infrastructure/db/redis"
	"github.com/99minutos/accounts/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(ctx)
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "accounts",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	checks := make(map[string]handler.DependencyCheck)

	var repo ports.UserRepository
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn().Msg("using in-memory storage; users are lost on restart")
		repo = memory.NewUserRepository()
	default:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "accounts",
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := mongodb.Disconnect(context.Background(), client); err != nil {
				log.Warn().Err(err).Msg("mongo disconnect")
			}
		}()

		users := mongodb.NewUserRepository(db)
		if err := users.EnsureIndexes(ctx); err != nil {
			return err
		}
		repo = users
		checks["mongodb"] = func(ctx context.Context) error { return mongodb.Ping(ctx, db) }
	}

	if cfg.Redis.Enabled {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rdb.Close()

		repo = redisdb.NewUserCache(repo, rdb, cfg.Redis.CacheTTL, log)
		checks["redis"] = func(ctx context.Context) error { return redisdb.Ping(ctx, rdb) }
	}

	accounts, err := service.NewAccountService(repo, newHasher(cfg.Password), log)
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Dependencies{
		Accounts: accounts,
		Checks:   checks,
		Logger:   log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("storage", cfg.Storage).
			Str("hasher", cfg.Password.Hasher).
			Bool("redis_cache", cfg.Redis.Enabled).
			Msg("accounts API listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func newHasher(cfg config.PasswordConfig) ports.PasswordHasher {
	if cfg.Hasher == config.HasherArgon2id {
		return crypto.NewArgon2Hasher(crypto.DefaultArgon2Params)
	}
	return crypto.NewBcryptHasher(cfg.BcryptCost)
}
