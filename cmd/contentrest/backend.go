package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/contentrest/internal/config"
	dbRedis "github.com/kailas-cloud/contentrest/internal/db/redis"
	"github.com/kailas-cloud/contentrest/internal/domain/contenttype"
	"github.com/kailas-cloud/contentrest/internal/repository/content"
	"github.com/kailas-cloud/contentrest/internal/repository/memory"
	"github.com/kailas-cloud/contentrest/internal/repository/pgcontent"
	contentuc "github.com/kailas-cloud/contentrest/internal/usecase/content"
	healthuc "github.com/kailas-cloud/contentrest/internal/usecase/health"
)

// backend is the content store selected by database.driver together with
// what the health check needs from it.
type backend struct {
	store   contentuc.Store
	pinger  healthuc.DBPinger
	indexes healthuc.IndexChecker // nil when the driver keeps no search index
	close   func()
}

func openBackend(
	ctx context.Context, cfg *config.Config, registry contenttype.Registry, logger *zap.Logger,
) (*backend, error) {
	switch cfg.Database.Driver {
	case config.DriverRedis:
		return openRedis(ctx, cfg, registry, logger)
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, registry, logger)
	case config.DriverMemory:
		logger.Warn("Using in-memory content store; records are lost on exit")
		s := memory.New(registry)
		return &backend{store: s, pinger: s, close: s.Close}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

func openRedis(
	ctx context.Context, cfg *config.Config, registry contenttype.Registry, logger *zap.Logger,
) (*backend, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis store: %w", err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("redis not ready: %w", err)
	}
	logger.Info("Connected to redis", zap.Strings("addrs", cfg.Database.Addrs))

	repo := content.New(store, registry, cfg.Storage.KeyPrefix)
	if err := repo.EnsureIndexes(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}
	return &backend{store: repo, pinger: store, indexes: repo, close: store.Close}, nil
}

func openPostgres(
	ctx context.Context, cfg *config.Config, registry contenttype.Registry, logger *zap.Logger,
) (*backend, error) {
	if err := pgcontent.Migrate(cfg.Database.DSN, logger); err != nil {
		return nil, err
	}

	connectCtx := ctx
	if cfg.Database.ReadinessTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second)
		defer cancel()
	}
	pool, err := pgcontent.Connect(connectCtx, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to postgres")

	repo := pgcontent.New(pool, registry)
	return &backend{store: repo, pinger: repo, close: pool.Close}, nil
}
