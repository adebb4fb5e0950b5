package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/config"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
	rediscache "github.com/vladislavdragonenkov/storefront/internal/storage/redis"
)

// runtimeDependencies хранилища и внешние ресурсы, выбранные по конфигурации.
type runtimeDependencies struct {
	products        domain.ProductRepository
	carts           domain.CartRepository
	orders          domain.OrderRepository
	timelineRepo    domain.TimelineRepository
	outboxRepo      domain.OutboxRepository
	idempotencyRepo domain.IdempotencyRepository

	productCache catalog.Cache

	// проверки для /healthz и /readyz; Kafka добавляется в app.Run
	watched []healthcheck.Dependency

	closers []func() error
}

func (d *runtimeDependencies) closeFn() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// initRuntimeDependencies открывает хранилище по storage.driver и, если задан
// redis.addr, кэш товаров. Недоступный Redis не мешает запуску.
func initRuntimeDependencies(ctx context.Context, cfg config.Config, logger *log.Entry) (*runtimeDependencies, error) {
	deps := &runtimeDependencies{}

	switch strings.TrimSpace(cfg.Storage.Driver) {
	case "", config.StorageDriverMemory:
		deps.products = memory.NewProductRepository()
		deps.carts = memory.NewCartRepository()
		deps.orders = memory.NewOrderRepository()
		deps.timelineRepo = memory.NewTimelineRepository()
		deps.outboxRepo = memory.NewOutboxRepository()
		deps.idempotencyRepo = memory.NewIdempotencyRepository()
		logger.Info("storage: in-memory")
	case config.StorageDriverPostgres:
		if err := initPostgres(ctx, cfg.Storage.Postgres, deps, logger); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Redis.Addr != "" {
		rdb, err := rediscache.Dial(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.WithError(err).Warn("redis is unavailable, product cache disabled")
		} else {
			deps.attachCache(rdb, cfg.Redis)
			logger.WithField("addr", cfg.Redis.Addr).Info("product cache: redis")
		}
	}

	return deps, nil
}

func initPostgres(ctx context.Context, cfg config.Postgres, deps *runtimeDependencies, logger *log.Entry) error {
	if strings.TrimSpace(cfg.DSN) == "" {
		return errors.New("postgres dsn is required for postgres storage driver")
	}

	store, err := postgres.OpenWithOptions(ctx, cfg.DSN, postgres.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if cfg.AutoMigrate {
		if err := store.EnsureSchema(ctx); err != nil {
			_ = store.Close()
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}

	deps.products = postgres.NewProductRepository(store)
	deps.carts = postgres.NewCartRepository(store)
	deps.orders = postgres.NewOrderRepository(store)
	deps.timelineRepo = postgres.NewTimelineRepository(store)
	deps.outboxRepo = postgres.NewOutboxRepository(store)
	deps.idempotencyRepo = postgres.NewIdempotencyRepository(store)
	deps.watched = append(deps.watched, healthcheck.Postgres(store.Ping, defaultPingTimeout))
	deps.closers = append(deps.closers, store.Close)

	logger.WithField("auto_migrate", cfg.AutoMigrate).Info("storage: postgres")
	return nil
}

func (d *runtimeDependencies) attachCache(rdb *goredis.Client, cfg config.Redis) {
	cache := rediscache.NewProductCache(rdb, cfg.ProductTTL)
	d.productCache = cache
	d.watched = append(d.watched, healthcheck.Redis(cache.Ping, defaultPingTimeout))
	d.closers = append(d.closers, rdb.Close)
}
