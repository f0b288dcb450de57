package admin

import (
	"context"
	"fmt"

	"github.com/izpodvypodvert/todoapi/internal/auth"
	"github.com/izpodvypodvert/todoapi/internal/config"
	"github.com/izpodvypodvert/todoapi/internal/database"
	"github.com/izpodvypodvert/todoapi/internal/repository"
	"github.com/izpodvypodvert/todoapi/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

func getDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:             cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// newTxManager builds the entity registry and fails when an entity the
// services need has no repository.
func newTxManager(pool *pgxpool.Pool, opts ...repository.TxManagerOption) (*repository.TxManager, error) {
	registry := repository.NewDefaultRegistry()
	if err := registry.Require(requiredEntities...); err != nil {
		return nil, err
	}
	return repository.NewTxManager(pool, registry, opts...), nil
}

func newUserManager(cfg *config.Config, tx service.TxManager, opts ...service.UserManagerOption) (*service.UserManager, error) {
	tokens, err := auth.NewTokens(cfg.Secret, cfg.TokenLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to configure tokens: %w", err)
	}
	return service.NewUserManager(tx, auth.NewPasswordHasher(auth.DefaultArgon2Params), tokens, opts...)
}
