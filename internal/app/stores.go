package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/persistence"
	"github.com/spec-kit/bug-tracker/internal/repository"
)

// OpenStores connects the configured backend and returns its repositories
// together with a cleanup func. A backend with no connection string falls
// back to the in-memory store.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Stores, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Info("using in-memory store")
		return repository.NewMemoryStore().Stores(), noop, nil

	case config.StoreDriverMongo:
		m, err := persistence.NewMongo(ctx, cfg.Mongo, logger)
		if err != nil {
			return repository.Stores{}, noop, err
		}
		if m.Client == nil {
			return memoryFallback(logger, config.StoreDriverMongo), noop, nil
		}
		if err := repository.EnsureMongoIndexes(ctx, m.DB); err != nil {
			m.Close(context.Background())
			return repository.Stores{}, noop, fmt.Errorf("mongo indexes: %w", err)
		}
		return repository.NewMongoStores(m.DB), func() { m.Close(context.Background()) }, nil

	default:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			return repository.Stores{}, noop, err
		}
		if pg.Pool == nil {
			return memoryFallback(logger, config.StoreDriverPostgres), noop, nil
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, logger); err != nil {
				pg.Close()
				return repository.Stores{}, noop, err
			}
		}
		return repository.NewPostgresStores(pg.Pool), pg.Close, nil
	}
}

func memoryFallback(logger *zap.Logger, driver string) repository.Stores {
	logger.Warn("no connection configured for store driver; falling back to in-memory store",
		zap.String("driver", driver))
	return repository.NewMemoryStore().Stores()
}
