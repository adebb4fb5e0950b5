// Package inventory управляет складскими остатками товаров.
package inventory

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	opReserve = "reserve"
	opRelease = "release"
)

// Controller меняет остатки через CAS по версии товара. Остаток никогда не
// уходит в минус, а каждая успешная запись увеличивает версию на единицу.
type Controller struct {
	products domain.ProductRepository
	policy   consistency.Policy
	logger   *log.Entry
	metrics  *metrics.CommerceMetrics
}

// Option настраивает Controller.
type Option func(*Controller)

// WithPolicy задаёт число попыток CAS и задержки.
func WithPolicy(p consistency.Policy) Option {
	return func(c *Controller) { c.policy = p }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(m *metrics.CommerceMetrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController создаёт контроллер поверх репозитория товаров.
func NewController(products domain.ProductRepository, opts ...Option) *Controller {
	c := &Controller{
		products: products,
		policy:   consistency.DefaultPolicy(),
		logger:   log.New().WithField("component", "stock-controller"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reserve списывает quantity со склада.
// ErrInsufficientStock, если на складе меньше quantity; остаток при этом не меняется.
func (c *Controller) Reserve(ctx context.Context, productID string, quantity int64) (domain.Product, error) {
	return c.change(ctx, opReserve, productID, -quantity, quantity)
}

// Release возвращает quantity на склад.
func (c *Controller) Release(ctx context.Context, productID string, quantity int64) (domain.Product, error) {
	return c.change(ctx, opRelease, productID, quantity, quantity)
}

// Adjust списывает (delta < 0) или возвращает (delta > 0) товар.
func (c *Controller) Adjust(ctx context.Context, productID string, delta int64) (domain.Product, error) {
	if delta < 0 {
		return c.Reserve(ctx, productID, -delta)
	}
	return c.Release(ctx, productID, delta)
}

func (c *Controller) change(ctx context.Context, op, productID string, delta, quantity int64) (domain.Product, error) {
	if quantity < 0 {
		c.metrics.RecordStockOperation(op, metrics.ResultRejected)
		return domain.Product{}, fmt.Errorf("%s %q: %w: %d", op, productID, domain.ErrInvalidQuantity, quantity)
	}

	if quantity == 0 {
		product, err := c.load(ctx, productID)
		if err != nil {
			c.metrics.RecordStockOperation(op, resultOf(err))
			return domain.Product{}, err
		}
		return product, nil
	}

	var updated domain.Product
	attempts, err := consistency.RetryOnConflict(ctx, c.policy, func(attempt int) error {
		product, err := c.load(ctx, productID)
		if err != nil {
			return err
		}

		next := product.Stock + delta
		if next < 0 {
			return fmt.Errorf("%w: product %q has %d, requested %d", domain.ErrInsufficientStock, productID, product.Stock, quantity)
		}
		product.Stock = next

		saved, err := c.products.Update(ctx, product)
		if err != nil {
			if domain.IsVersionConflict(err) {
				c.metrics.RecordCASConflict(domain.AggregateProduct)
				c.logger.WithFields(log.Fields{
					"op":         op,
					"product_id": productID,
					"attempt":    attempt,
				}).Debug("конфликт версий товара, повторяем")
			}
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		c.metrics.RecordStockOperation(op, resultOf(err))
		if domain.KindOf(err) == domain.KindConflict {
			c.logger.WithFields(log.Fields{
				"op":         op,
				"product_id": productID,
				"attempts":   attempts,
			}).Warn("попытки обновить остаток исчерпаны")
		}
		return domain.Product{}, err
	}

	c.metrics.RecordStockOperation(op, metrics.ResultOK)
	c.metrics.RecordCASAttempts(domain.AggregateProduct, attempts)
	return updated, nil
}

func (c *Controller) load(ctx context.Context, productID string) (domain.Product, error) {
	return consistency.Read(ctx, c.policy, func(ctx context.Context) (domain.Product, error) {
		return c.products.Get(ctx, productID)
	})
}

func resultOf(err error) string {
	switch domain.KindOf(err) {
	case domain.KindConflict:
		return metrics.ResultConflict
	case domain.KindNotFound, domain.KindBusinessRule, domain.KindInvalidArgument:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}

var _ domain.StockController = (*Controller)(nil)
