package storage

import (
	"context"
	"fmt"

	"github.com/clocktower/grimoire-server-go/internal/common/clock"
	"github.com/clocktower/grimoire-server-go/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Open builds the store selected by the storage configuration.
func Open(ctx context.Context, cfg config.StorageConfig, clk clock.Clock, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		store Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		store, err = NewFileStore(cfg.Dir, clk, logger)
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store, err = NewRedisStore(ctx, &RedisConfig{
			RedisClient: client,
			KeyPrefix:   cfg.Redis.KeyPrefix,
			Clock:       clk,
			Logger:      logger,
		})
		if err != nil {
			client.Close()
		}
	case config.BackendPostgres:
		store, err = OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.MaxConns, clk, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("snapshot store opened", zap.String("backend", cfg.Backend))
	return store, nil
}
