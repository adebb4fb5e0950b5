package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/config"
	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
)

// services доменные сервисы и API поверх выбранных хранилищ.
type services struct {
	stock   *inventory.Controller
	catalog *catalog.Service
	orders  *order.Machine
	carts   *cart.Manager
	api     *grpcsvc.Server
}

func consistencyPolicy(cfg config.Consistency) consistency.Policy {
	return consistency.Policy{
		MaxAttempts: cfg.CASAttempts,
		BaseDelay:   cfg.BaseDelay,
		MaxDelay:    cfg.MaxDelay,
	}
}

// buildServices связывает stock controller, каталог, заказы и корзины.
// Корзина оформляет заказы через order.Machine.
func buildServices(deps *runtimeDependencies, cfg config.Config, m *metrics.CommerceMetrics, logger *log.Entry) *services {
	policy := consistencyPolicy(cfg.Consistency)
	recorder := events.NewRecorder(deps.outboxRepo, deps.timelineRepo, logger.WithField("layer", "events"), m)

	stock := inventory.NewController(deps.products,
		inventory.WithPolicy(policy),
		inventory.WithMetrics(m),
		inventory.WithLogger(logger.WithField("layer", "inventory")),
	)

	catalogOpts := []catalog.Option{
		catalog.WithEvents(recorder),
		catalog.WithPolicy(policy),
		catalog.WithLogger(logger.WithField("layer", "catalog")),
	}
	if deps.productCache != nil {
		catalogOpts = append(catalogOpts, catalog.WithCache(deps.productCache))
	}
	products := catalog.NewService(deps.products, stock, catalogOpts...)

	orders := order.NewMachine(deps.orders, stock, products,
		order.WithEvents(recorder),
		order.WithPolicy(policy),
		order.WithMetrics(m),
		order.WithLogger(logger.WithField("layer", "order")),
	)
	carts := cart.NewManager(deps.carts, stock, products, orders,
		cart.WithEvents(recorder),
		cart.WithPolicy(policy),
		cart.WithMetrics(m),
		cart.WithLogger(logger.WithField("layer", "cart")),
	)

	api := grpcsvc.NewServer(carts, orders, products,
		grpcsvc.WithIdempotency(deps.idempotencyRepo, cfg.Idempotency.TTL),
		grpcsvc.WithLogger(logger.WithField("layer", "grpc")),
	)

	return &services{stock: stock, catalog: products, orders: orders, carts: carts, api: api}
}
