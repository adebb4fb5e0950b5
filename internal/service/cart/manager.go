// Package cart управляет корзинами клиентов: добавление и удаление товара
// с резервированием на складе и оформление заказа.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

// OrderPlacer создаёт заказ из снимка корзины и умеет его отменить,
// если корзину не удалось закрыть.
type OrderPlacer interface {
	Create(ctx context.Context, snapshot domain.CheckoutSnapshot) (domain.Order, error)
	Discard(ctx context.Context, orderID string) error
}

// Manager операции над корзинами.
//
// Порядок записи везде один: сначала склад, затем корзина. Если запись корзины
// не удалась, складская операция откатывается обратной.
type Manager struct {
	carts       domain.CartRepository
	stock       domain.StockController
	lookup      domain.ProductLookup
	orders      OrderPlacer
	events      *events.Recorder
	compensator *consistency.Compensator
	policy      consistency.Policy
	logger      *log.Entry
	metrics     *metrics.CommerceMetrics
}

// Option настраивает Manager.
type Option func(*Manager)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(cm *metrics.CommerceMetrics) Option {
	return func(m *Manager) { m.metrics = cm }
}

// WithEvents подключает запись событий.
func WithEvents(r *events.Recorder) Option {
	return func(m *Manager) { m.events = r }
}

// WithPolicy задаёт политику повторов CAS.
func WithPolicy(p consistency.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// NewManager создаёт Manager.
func NewManager(carts domain.CartRepository, stock domain.StockController, lookup domain.ProductLookup, orders OrderPlacer, opts ...Option) *Manager {
	m := &Manager{
		carts:  carts,
		stock:  stock,
		lookup: lookup,
		orders: orders,
		policy: consistency.DefaultPolicy(),
		logger: log.New().WithField("component", "cart-manager"),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.compensator = consistency.NewCompensator(m.logger, m.metrics)
	return m
}

// GetCart возвращает корзину клиента; found=false, если корзины нет.
func (m *Manager) GetCart(ctx context.Context, clientID string) (domain.CartView, bool, error) {
	if err := requireClient(clientID); err != nil {
		return domain.CartView{}, false, err
	}

	cart, err := m.load(ctx, clientID)
	if errors.Is(err, domain.ErrCartNotFound) {
		return domain.CartView{ClientID: clientID}, false, nil
	}
	if err != nil {
		return domain.CartView{}, false, err
	}

	lines, err := domain.ResolveLines(ctx, m.lookup, cart.Lines())
	if err != nil {
		return domain.CartView{}, false, err
	}
	return domain.NewCartView(cart, lines), true, nil
}

// AddItem резервирует quantity товара и добавляет его в корзину, создавая её при необходимости.
func (m *Manager) AddItem(ctx context.Context, clientID, productID string, quantity int64) (domain.Cart, error) {
	defer m.observe("add_item", time.Now())

	if err := requireClient(clientID); err != nil {
		return domain.Cart{}, err
	}
	if quantity <= 0 {
		return domain.Cart{}, fmt.Errorf("add item: %w: %d", domain.ErrInvalidQuantity, quantity)
	}

	product, err := m.stock.Reserve(ctx, productID, quantity)
	if err != nil {
		return domain.Cart{}, err
	}

	cart, _, err := m.apply(ctx, clientID, productID, quantity, product.PriceMinor, true)
	if err != nil {
		m.compensator.Run(ctx, "release", log.Fields{
			"client_id":  clientID,
			"product_id": productID,
			"quantity":   quantity,
		}, func(ctx context.Context) error {
			_, err := m.stock.Release(ctx, productID, quantity)
			return err
		})
		return domain.Cart{}, err
	}

	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateCart,
		AggregateID:   clientID,
		Type:          events.CartItemAdded,
		Payload: map[string]any{
			"product_id": productID,
			"quantity":   quantity,
			"total_qty":  cart.TotalQuantity,
		},
	})
	return cart, nil
}

// RemoveItem убирает quantity товара из корзины и возвращает его на склад.
// exists=false, если после удаления корзина опустела и была удалена.
func (m *Manager) RemoveItem(ctx context.Context, clientID, productID string, quantity int64) (cart domain.Cart, exists bool, err error) {
	defer m.observe("remove_item", time.Now())

	if err := requireClient(clientID); err != nil {
		return domain.Cart{}, false, err
	}
	if quantity <= 0 {
		return domain.Cart{}, false, fmt.Errorf("remove item: %w: %d", domain.ErrInvalidQuantity, quantity)
	}

	current, err := m.load(ctx, clientID)
	if err != nil {
		return domain.Cart{}, false, err
	}
	present, ok := current.Items.Quantity(productID)
	if !ok {
		return domain.Cart{}, false, fmt.Errorf("remove item %q: %w", productID, domain.ErrLineNotFound)
	}
	if quantity > present {
		return domain.Cart{}, false, fmt.Errorf("remove item %q: %w: in cart %d, requested %d", productID, domain.ErrInsufficientQuantity, present, quantity)
	}

	product, err := m.stock.Release(ctx, productID, quantity)
	if err != nil {
		return domain.Cart{}, false, err
	}

	cart, exists, err = m.apply(ctx, clientID, productID, -quantity, product.PriceMinor, false)
	if err != nil {
		m.compensator.Run(ctx, "reserve", log.Fields{
			"client_id":  clientID,
			"product_id": productID,
			"quantity":   quantity,
		}, func(ctx context.Context) error {
			_, err := m.stock.Reserve(ctx, productID, quantity)
			return err
		})
		return domain.Cart{}, false, err
	}

	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateCart,
		AggregateID:   clientID,
		Type:          events.CartItemRemoved,
		Payload: map[string]any{
			"product_id": productID,
			"quantity":   quantity,
			"total_qty":  cart.TotalQuantity,
		},
	})
	return cart, exists, nil
}

// Checkout превращает корзину в заказ и удаляет корзину.
// Склад не меняется: товар был зарезервирован при добавлении.
func (m *Manager) Checkout(ctx context.Context, clientID string) (domain.Order, error) {
	defer m.observe("checkout", time.Now())

	if err := requireClient(clientID); err != nil {
		return domain.Order{}, err
	}

	var placed domain.Order
	attempts, err := consistency.RetryOnConflict(ctx, m.policy, func(attempt int) error {
		cart, err := m.load(ctx, clientID)
		if err != nil {
			return err
		}
		if cart.Empty() {
			return fmt.Errorf("checkout: %w: cart is empty", domain.ErrCartNotFound)
		}

		order, err := m.orders.Create(ctx, cart.Snapshot())
		if err != nil {
			return err
		}

		err = m.carts.Delete(ctx, clientID, cart.Version)
		if err == nil {
			placed = order
			return nil
		}

		// Корзина изменилась или уже оформлена параллельно: созданный заказ не соответствует ей.
		m.compensator.Run(ctx, "discard_order", log.Fields{
			"client_id": clientID,
			"order_id":  order.ID,
			"attempt":   attempt,
		}, func(ctx context.Context) error {
			return m.orders.Discard(ctx, order.ID)
		})
		if domain.IsVersionConflict(err) {
			m.metrics.RecordCASConflict(domain.AggregateCart)
		}
		return err
	})
	if err != nil {
		m.metrics.RecordCheckout(checkoutResult(err))
		return domain.Order{}, err
	}

	m.metrics.RecordCheckout(metrics.ResultOK)
	m.metrics.RecordCASAttempts(domain.AggregateCart, attempts)
	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateCart,
		AggregateID:   clientID,
		Type:          events.CartCheckedOut,
		Payload: map[string]any{
			"order_id":  placed.ID,
			"total_qty": placed.TotalQuantity,
		},
	})
	m.logger.WithFields(log.Fields{
		"client_id": clientID,
		"order_id":  placed.ID,
	}).Info("корзина оформлена в заказ")
	return placed, nil
}

// apply меняет позицию корзины под CAS. Пустая корзина удаляется.
func (m *Manager) apply(ctx context.Context, clientID, productID string, delta, unitPrice int64, allowCreate bool) (domain.Cart, bool, error) {
	var (
		result domain.Cart
		exists bool
	)
	attempts, err := consistency.RetryOnConflict(ctx, m.policy, func(attempt int) error {
		current, err := m.load(ctx, clientID)
		if errors.Is(err, domain.ErrCartNotFound) && allowCreate {
			fresh := domain.Cart{ClientID: clientID}
			if _, err := fresh.Apply(productID, delta, unitPrice); err != nil {
				return err
			}
			created, err := m.carts.Create(ctx, fresh)
			if errors.Is(err, domain.ErrAlreadyExists) {
				// корзину создал параллельный запрос, перечитываем
				return m.conflict(clientID, attempt, err, false)
			}
			if err != nil {
				return err
			}
			result, exists = created, true
			return nil
		}
		if err != nil {
			return err
		}

		next := current.Clone()
		if _, err := next.Apply(productID, delta, unitPrice); err != nil {
			return err
		}

		if next.Empty() {
			if err := m.carts.Delete(ctx, clientID, current.Version); err != nil {
				return m.conflict(clientID, attempt, err, allowCreate)
			}
			result, exists = next, false
			return nil
		}

		saved, err := m.carts.Update(ctx, next)
		if err != nil {
			return m.conflict(clientID, attempt, err, allowCreate)
		}
		result, exists = saved, true
		return nil
	})
	if err != nil {
		return domain.Cart{}, false, err
	}
	m.metrics.RecordCASAttempts(domain.AggregateCart, attempts)
	return result, exists, nil
}

// conflict превращает ошибку записи в конфликт версий, если операцию стоит
// повторить с перечитыванием. При recreate исчезнувшая корзина (её удалило
// параллельное оформление) тоже повторяется: следующая попытка создаст новую.
func (m *Manager) conflict(clientID string, attempt int, err error, recreate bool) error {
	if domain.IsVersionConflict(err) || errors.Is(err, domain.ErrAlreadyExists) ||
		(recreate && errors.Is(err, domain.ErrCartNotFound)) {
		m.metrics.RecordCASConflict(domain.AggregateCart)
		m.logger.WithFields(log.Fields{
			"client_id": clientID,
			"attempt":   attempt,
		}).Debug("конфликт версий корзины, повторяем")
		return fmt.Errorf("%w: %w", domain.ErrVersionConflict, err)
	}
	return err
}

func (m *Manager) load(ctx context.Context, clientID string) (domain.Cart, error) {
	return consistency.Read(ctx, m.policy, func(ctx context.Context) (domain.Cart, error) {
		return m.carts.Get(ctx, clientID)
	})
}

func (m *Manager) observe(op string, started time.Time) {
	m.metrics.RecordOperationDuration(op, time.Since(started))
}

func requireClient(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client id is required", domain.ErrInvalidArgument)
	}
	return nil
}

func checkoutResult(err error) string {
	switch domain.KindOf(err) {
	case domain.KindConflict:
		return metrics.ResultConflict
	case domain.KindNotFound:
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
