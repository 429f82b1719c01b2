package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/zhejian/shortlink/internal/config"
	"github.com/zhejian/shortlink/internal/events"
	"github.com/zhejian/shortlink/internal/infra"
	"github.com/zhejian/shortlink/internal/repository"
)

// Resources owns the connections behind a running service.
type Resources struct {
	Store     repository.Store
	Cache     *redis.Client // nil when caching is disabled
	Publisher events.Publisher

	closers []func() error
}

// Open connects the store selected by DB_DRIVER, applying migrations when
// DB_AUTO_MIGRATE is set, plus the optional cache and event broker.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Resources, error) {
	res := &Resources{Publisher: events.NoopPublisher{}}

	if err := res.openStore(ctx, cfg); err != nil {
		res.Close()
		return nil, err
	}
	logger.Info("store connected", slog.String("driver", cfg.Database.Driver))

	if cfg.Cache.Enabled {
		cache, err := infra.NewCacheClient(ctx, cfg.Cache.ConnectionString())
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("connect cache: %w", err)
		}
		res.Cache = cache
		res.closers = append(res.closers, cache.Close)
		logger.Info("cache connected", slog.Duration("ttl", cfg.Cache.TTL))
	}

	if cfg.Broker.URL != "" {
		conn, err := infra.NewBrokerConnection(cfg.Broker.URL)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		res.closers = append(res.closers, conn.Close)

		publisher, err := events.NewAMQPPublisher(conn, cfg.Broker.Exchange)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("declare exchange: %w", err)
		}
		res.Publisher = publisher
		res.closers = append(res.closers, publisher.Close)
		logger.Info("event broker connected", slog.String("exchange", cfg.Broker.Exchange))
	}

	return res, nil
}

func (r *Resources) openStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		connString := cfg.Database.ConnectionString()
		if cfg.Database.AutoMigrate {
			if err := repository.MigratePostgres(connString); err != nil {
				return fmt.Errorf("migrate postgres: %w", err)
			}
		}
		pool, err := infra.NewPostgresPool(ctx, connString)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		r.closers = append(r.closers, func() error { pool.Close(); return nil })
		r.Store = repository.NewPostgresStore(pool)

	case config.DriverSQLite:
		db, err := infra.NewSQLiteDB(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		r.closers = append(r.closers, db.Close)
		if cfg.Database.AutoMigrate {
			if err := repository.MigrateSQLite(db); err != nil {
				return fmt.Errorf("migrate sqlite: %w", err)
			}
		}
		r.Store = repository.NewSQLiteStore(db)

	case config.DriverMemory:
		r.Store = repository.NewMemoryStore()

	default:
		return fmt.Errorf("unsupported driver %q", cfg.Database.Driver)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (r *Resources) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
	r.closers = nil
}

// Migrate applies pending schema migrations for the configured driver.
// The memory store has no schema.
func Migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		return repository.MigratePostgres(cfg.Database.ConnectionString())
	case config.DriverSQLite:
		db, err := infra.NewSQLiteDB(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()
		return repository.MigrateSQLite(db)
	case config.DriverMemory:
		return nil
	default:
		return fmt.Errorf("unsupported driver %q", cfg.Database.Driver)
	}
}
