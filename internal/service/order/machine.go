// Package order реализует жизненный цикл заказа: создание из корзины,
// подтверждение, отклонение, выполнение и корректировку позиций.
package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

const defaultListLimit = 500

// Machine управляет заказами.
type Machine struct {
	orders      domain.OrderRepository
	stock       domain.StockController
	lookup      domain.ProductLookup
	events      *events.Recorder
	compensator *consistency.Compensator
	policy      consistency.Policy
	logger      *log.Entry
	metrics     *metrics.CommerceMetrics

	now func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// Option настраивает Machine.
type Option func(*Machine)

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics подключает метрики.
func WithMetrics(cm *metrics.CommerceMetrics) Option {
	return func(m *Machine) { m.metrics = cm }
}

// WithEvents подключает запись событий и историю заказа.
func WithEvents(r *events.Recorder) Option {
	return func(m *Machine) { m.events = r }
}

// WithPolicy задаёт политику повторов CAS.
func WithPolicy(p consistency.Policy) Option {
	return func(m *Machine) { m.policy = p }
}

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithRandSource задаёт источник номеров заказов.
func WithRandSource(src rand.Source) Option {
	return func(m *Machine) { m.rnd = rand.New(src) }
}

// NewMachine создаёт Machine.
func NewMachine(orders domain.OrderRepository, stock domain.StockController, lookup domain.ProductLookup, opts ...Option) *Machine {
	m := &Machine{
		orders: orders,
		stock:  stock,
		lookup: lookup,
		policy: consistency.DefaultPolicy(),
		logger: log.New().WithField("component", "order-machine"),
		now:    func() time.Time { return time.Now().UTC() },
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.compensator = consistency.NewCompensator(m.logger, m.metrics)
	return m
}

// Create создаёт открытый заказ из снимка корзины.
func (m *Machine) Create(ctx context.Context, snapshot domain.CheckoutSnapshot) (domain.Order, error) {
	if snapshot.ClientID == "" {
		return domain.Order{}, fmt.Errorf("%w: client id is required", domain.ErrInvalidArgument)
	}
	if snapshot.Basket.Empty() {
		return domain.Order{}, fmt.Errorf("create order: %w: cart is empty", domain.ErrCartNotFound)
	}
	if errs := snapshot.Basket.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("create order: %w", errors.Join(errs...))
	}

	order := domain.Order{
		ID:        uuid.NewString(),
		Number:    m.nextNumber(),
		ClientID:  snapshot.ClientID,
		State:     domain.OrderStateOpen,
		Basket:    snapshot.Basket.Clone(),
		CreatedAt: m.now(),
	}

	created, err := m.orders.Create(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	m.metrics.RecordOrderTransition(string(domain.OrderStateOpen))
	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateOrder,
		AggregateID:   created.ID,
		Type:          events.OrderCreated,
		Reason:        "checkout",
		Payload: map[string]any{
			"client_id":  created.ClientID,
			"number":     created.Number,
			"items":      created.Items,
			"total_qty":  created.TotalQuantity,
			"total_cost": created.TotalCostMinor,
		},
	})
	return created, nil
}

// Discard удаляет заказ, созданный неудавшимся оформлением.
func (m *Machine) Discard(ctx context.Context, orderID string) error {
	err := m.orders.Delete(ctx, orderID)
	if errors.Is(err, domain.ErrOrderNotFound) {
		return nil
	}
	return err
}

// Confirm подтверждает открытый заказ.
func (m *Machine) Confirm(ctx context.Context, orderID string) (domain.Order, error) {
	return m.transition(ctx, orderID, domain.OrderStateConfirmed, events.OrderConfirmed)
}

// Reject отклоняет открытый заказ и возвращает его товар на склад.
func (m *Machine) Reject(ctx context.Context, orderID string) (domain.Order, error) {
	return m.transition(ctx, orderID, domain.OrderStateRejected, events.OrderRejected)
}

// Complete отмечает подтверждённый заказ выполненным.
func (m *Machine) Complete(ctx context.Context, orderID string) (domain.Order, error) {
	return m.transition(ctx, orderID, domain.OrderStateCompleted, events.OrderCompleted)
}

func (m *Machine) transition(ctx context.Context, orderID string, next domain.OrderState, eventType string) (domain.Order, error) {
	defer m.observe("order_"+string(next), time.Now())

	var (
		result  domain.Order
		changed bool
	)
	attempts, err := consistency.RetryOnConflict(ctx, m.policy, func(attempt int) error {
		order, err := m.load(ctx, orderID)
		if err != nil {
			return err
		}

		changed, err = order.TransitionTo(next)
		if err != nil {
			return err
		}
		if !changed {
			result = order
			return nil
		}

		saved, err := m.orders.Save(ctx, order)
		if err != nil {
			return m.conflict(orderID, attempt, err)
		}
		result = saved
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	if !changed {
		m.logger.WithFields(log.Fields{
			"order_id": orderID,
			"state":    next,
		}).Debug("заказ уже в целевом статусе")
		return result, nil
	}

	m.metrics.RecordCASAttempts(domain.AggregateOrder, attempts)
	m.metrics.RecordOrderTransition(string(next))

	if next == domain.OrderStateRejected {
		m.releaseLines(ctx, result)
	}

	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateOrder,
		AggregateID:   result.ID,
		Type:          eventType,
		Reason:        fmt.Sprintf("state changed to %s", next),
		Payload: map[string]any{
			"client_id": result.ClientID,
			"number":    result.Number,
			"state":     string(result.State),
		},
	})
	return result, nil
}

// releaseLines возвращает на склад товар отклонённого заказа. Статус уже
// сохранён, поэтому ошибки только логируются и считаются.
func (m *Machine) releaseLines(ctx context.Context, order domain.Order) {
	for _, line := range order.Lines() {
		m.compensator.Run(ctx, "reject_release", log.Fields{
			"order_id":   order.ID,
			"product_id": line.ProductID,
			"quantity":   line.Quantity,
		}, func(ctx context.Context) error {
			_, err := m.stock.Release(ctx, line.ProductID, line.Quantity)
			if errors.Is(err, domain.ErrProductNotFound) {
				// товар удалён из каталога, возвращать некуда
				return nil
			}
			return err
		})
	}
}

// AdjustLine меняет количество товара в незавершённом заказе на delta
// с соответствующим резервированием или возвратом на склад.
func (m *Machine) AdjustLine(ctx context.Context, orderID, productID string, delta int64) (domain.Order, error) {
	defer m.observe("order_adjust_line", time.Now())

	if delta == 0 {
		return domain.Order{}, fmt.Errorf("adjust line: %w: zero delta", domain.ErrInvalidQuantity)
	}
	if productID == "" {
		return domain.Order{}, fmt.Errorf("%w: product id is required", domain.ErrInvalidArgument)
	}

	order, err := m.load(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if err := checkAdjustable(order, productID, delta); err != nil {
		return domain.Order{}, err
	}

	var product domain.Product
	if delta > 0 {
		product, err = m.stock.Reserve(ctx, productID, delta)
	} else {
		product, err = m.stock.Release(ctx, productID, -delta)
	}
	if err != nil {
		return domain.Order{}, err
	}

	var result domain.Order
	attempts, err := consistency.RetryOnConflict(ctx, m.policy, func(attempt int) error {
		current, err := m.load(ctx, orderID)
		if err != nil {
			return err
		}
		if err := checkAdjustable(current, productID, delta); err != nil {
			return err
		}
		if _, err := current.Apply(productID, delta, product.PriceMinor); err != nil {
			return err
		}
		saved, err := m.orders.Save(ctx, current)
		if err != nil {
			return m.conflict(orderID, attempt, err)
		}
		result = saved
		return nil
	})
	if err != nil {
		fields := log.Fields{"order_id": orderID, "product_id": productID, "delta": delta}
		if delta > 0 {
			m.compensator.Run(ctx, "release", fields, func(ctx context.Context) error {
				_, err := m.stock.Release(ctx, productID, delta)
				return err
			})
		} else {
			m.compensator.Run(ctx, "reserve", fields, func(ctx context.Context) error {
				_, err := m.stock.Reserve(ctx, productID, -delta)
				return err
			})
		}
		return domain.Order{}, err
	}

	m.metrics.RecordCASAttempts(domain.AggregateOrder, attempts)
	m.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateOrder,
		AggregateID:   result.ID,
		Type:          events.OrderLineAdjusted,
		Reason:        fmt.Sprintf("product %s changed by %d", productID, delta),
		Payload: map[string]any{
			"client_id":  result.ClientID,
			"product_id": productID,
			"delta":      delta,
			"total_qty":  result.TotalQuantity,
			"total_cost": result.TotalCostMinor,
		},
	})
	return result, nil
}

func checkAdjustable(order domain.Order, productID string, delta int64) error {
	if order.State.Terminal() {
		return fmt.Errorf("adjust line: %w: order is %s", domain.ErrInvalidTransition, order.State)
	}
	current, _ := order.Items.Quantity(productID)
	if current+delta < 0 {
		return fmt.Errorf("adjust line: %w: order has %d of %q, delta %d", domain.ErrInvalidQuantity, current, productID, delta)
	}
	return nil
}

// Get возвращает заказ без дополнительных данных.
func (m *Machine) Get(ctx context.Context, orderID string) (domain.Order, error) {
	return m.load(ctx, orderID)
}

// ListForClient возвращает заказы клиента, новые первыми.
func (m *Machine) ListForClient(ctx context.Context, clientID string) ([]domain.OrderView, error) {
	orders, err := consistency.Read(ctx, m.policy, func(ctx context.Context) ([]domain.Order, error) {
		return m.orders.ListByClient(ctx, clientID, defaultListLimit)
	})
	if err != nil {
		return nil, err
	}
	return m.views(ctx, orders)
}

// ListAll возвращает все заказы (для администратора).
func (m *Machine) ListAll(ctx context.Context) ([]domain.OrderView, error) {
	orders, err := consistency.Read(ctx, m.policy, func(ctx context.Context) ([]domain.Order, error) {
		return m.orders.List(ctx, defaultListLimit)
	})
	if err != nil {
		return nil, err
	}
	return m.views(ctx, orders)
}

// Detail возвращает заказ с позициями и историей.
func (m *Machine) Detail(ctx context.Context, orderID string) (domain.OrderDetail, error) {
	order, err := m.load(ctx, orderID)
	if err != nil {
		return domain.OrderDetail{}, err
	}
	lines, err := domain.ResolveLines(ctx, m.lookup, order.Lines())
	if err != nil {
		return domain.OrderDetail{}, err
	}
	timeline, err := m.events.Timeline(ctx, orderID)
	if err != nil {
		m.logger.WithError(err).WithField("order_id", orderID).Warn("история заказа недоступна")
	}
	return domain.OrderDetail{
		OrderView: domain.NewOrderView(order, lines),
		Timeline:  timeline,
	}, nil
}

func (m *Machine) views(ctx context.Context, orders []domain.Order) ([]domain.OrderView, error) {
	result := make([]domain.OrderView, 0, len(orders))
	for _, order := range orders {
		lines, err := domain.ResolveLines(ctx, m.lookup, order.Lines())
		if err != nil {
			return nil, err
		}
		result = append(result, domain.NewOrderView(order, lines))
	}
	return result, nil
}

func (m *Machine) load(ctx context.Context, orderID string) (domain.Order, error) {
	return consistency.Read(ctx, m.policy, func(ctx context.Context) (domain.Order, error) {
		return m.orders.Get(ctx, orderID)
	})
}

func (m *Machine) conflict(orderID string, attempt int, err error) error {
	if domain.IsVersionConflict(err) {
		m.metrics.RecordCASConflict(domain.AggregateOrder)
		m.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt,
		}).Warn("version conflict detected, retrying")
	}
	return err
}

func (m *Machine) nextNumber() string {
	m.rndMu.Lock()
	defer m.rndMu.Unlock()
	return fmt.Sprintf("%05d", m.rnd.Intn(100000))
}

func (m *Machine) observe(op string, started time.Time) {
	m.metrics.RecordOperationDuration(op, time.Since(started))
}
