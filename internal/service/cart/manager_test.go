package cart_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ledger"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/cart"
	"github.com/vladislavdragonenkov/storefront/internal/service/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
	"github.com/vladislavdragonenkov/storefront/internal/service/inventory"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type fixture struct {
	products domain.ProductRepository
	carts    domain.CartRepository
	orders   domain.OrderRepository
	outbox   *memory.OutboxRepository
	catalog  *catalog.Service
	machine  *order.Machine
	manager  *cart.Manager
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	carts  func(domain.CartRepository) domain.CartRepository
	placer func(cart.OrderPlacer) cart.OrderPlacer
}

func withCarts(wrap func(domain.CartRepository) domain.CartRepository) fixtureOption {
	return func(c *fixtureConfig) { c.carts = wrap }
}

func withPlacer(wrap func(cart.OrderPlacer) cart.OrderPlacer) fixtureOption {
	return func(c *fixtureConfig) { c.placer = wrap }
}

func testLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "test")
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := testLogger()
	m := metrics.NewCommerceMetricsWithRegisterer(prometheus.NewRegistry())
	policy := consistency.Policy{MaxAttempts: 200, BaseDelay: time.Microsecond, MaxDelay: 200 * time.Microsecond}

	f := &fixture{
		products: memory.NewProductRepository(),
		carts:    memory.NewCartRepository(),
		orders:   memory.NewOrderRepository(),
		outbox:   memory.NewOutboxRepository(),
	}
	recorder := events.NewRecorder(f.outbox, memory.NewTimelineRepository(), logger, m)
	stock := inventory.NewController(f.products, inventory.WithPolicy(policy), inventory.WithLogger(logger), inventory.WithMetrics(m))
	f.catalog = catalog.NewService(f.products, stock, catalog.WithLogger(logger))
	f.machine = order.NewMachine(f.orders, stock, f.catalog, order.WithLogger(logger), order.WithEvents(recorder), order.WithMetrics(m))

	carts := f.carts
	if cfg.carts != nil {
		carts = cfg.carts(carts)
	}
	var placer cart.OrderPlacer = f.machine
	if cfg.placer != nil {
		placer = cfg.placer(placer)
	}
	f.manager = cart.NewManager(carts, stock, f.catalog, placer,
		cart.WithLogger(logger),
		cart.WithMetrics(m),
		cart.WithEvents(recorder),
		cart.WithPolicy(policy),
	)
	return f
}

func (f *fixture) product(t *testing.T, name string, price, stock int64) domain.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), catalog.ProductDraft{
		Name: name, Description: "d", ImageURL: "img", PriceMinor: price, Stock: stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	p, err := f.products.Get(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func TestAddItem_ReservesAndCreatesCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)
	chair := f.product(t, "chair", 2500, 5)

	c, err := f.manager.AddItem(ctx, "c1", lamp.ID, 3)
	require.NoError(t, err)
	require.Equal(t, int64(3), c.TotalQuantity)

	c, err = f.manager.AddItem(ctx, "c1", chair.ID, 2)
	require.NoError(t, err)
	c, err = f.manager.AddItem(ctx, "c1", lamp.ID, 1)
	require.NoError(t, err)

	require.Equal(t, int64(6), c.TotalQuantity)
	require.Equal(t, int64(4*1000+2*2500), c.TotalCostMinor)
	require.Empty(t, c.ValidateInvariants())
	require.Equal(t, int64(6), f.stock(t, lamp.ID))
	require.Equal(t, int64(3), f.stock(t, chair.ID))

	view, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, view.Lines, 2)
	require.Equal(t, lamp.ID, view.Lines[0].ProductID)
	require.Equal(t, "lamp", view.Lines[0].Name)
	require.True(t, view.Lines[0].Available)
}

func TestAddItem_RepricesTouchedLine(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 2)
	require.NoError(t, err)

	price := int64(1200)
	_, err = f.catalog.Edit(ctx, lamp.ID, catalog.ProductPatch{PriceMinor: &price})
	require.NoError(t, err)

	c, err := f.manager.AddItem(ctx, "c1", lamp.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(3*1200), c.TotalCostMinor)
}

func TestAddItem_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 2)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.manager.AddItem(ctx, "c1", lamp.ID, 3)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = f.manager.AddItem(ctx, "c1", "missing", 1)
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.manager.AddItem(ctx, "", lamp.ID, 1)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.False(t, found)
	require.Equal(t, int64(2), f.stock(t, lamp.ID))
}

type flakyCarts struct {
	domain.CartRepository
	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
}

func (r *flakyCarts) Create(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	err := r.createErr
	r.mu.Unlock()
	if err != nil {
		return domain.Cart{}, err
	}
	return r.CartRepository.Create(ctx, c)
}

func (r *flakyCarts) Update(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	r.mu.Lock()
	err := r.updateErr
	r.mu.Unlock()
	if err != nil {
		return domain.Cart{}, err
	}
	return r.CartRepository.Update(ctx, c)
}

func (r *flakyCarts) Delete(ctx context.Context, clientID string, version int64) error {
	r.mu.Lock()
	err := r.deleteErr
	r.mu.Unlock()
	if err != nil {
		return err
	}
	return r.CartRepository.Delete(ctx, clientID, version)
}

func TestAddItem_CartWriteFailureReleasesStock(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCarts{createErr: fmt.Errorf("create cart: %w", domain.ErrStoreUnavailable)}
	f := newFixture(t, withCarts(func(inner domain.CartRepository) domain.CartRepository {
		flaky.CartRepository = inner
		return flaky
	}))
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 4)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.Equal(t, int64(10), f.stock(t, lamp.ID))
}

// vanishingCarts удаляет корзину перед первой записью, как параллельное оформление.
type vanishingCarts struct {
	domain.CartRepository
	once sync.Once
}

func (r *vanishingCarts) Update(ctx context.Context, c domain.Cart) (domain.Cart, error) {
	r.once.Do(func() {
		_ = r.CartRepository.Delete(ctx, c.ClientID, c.Version)
	})
	return r.CartRepository.Update(ctx, c)
}

func (r *vanishingCarts) Delete(ctx context.Context, clientID string, version int64) error {
	r.once.Do(func() {
		_ = r.CartRepository.Delete(ctx, clientID, version)
	})
	return r.CartRepository.Delete(ctx, clientID, version)
}

func TestAddItem_CartDeletedConcurrentlyIsRecreated(t *testing.T) {
	ctx := context.Background()
	vanishing := &vanishingCarts{}
	f := newFixture(t, withCarts(func(inner domain.CartRepository) domain.CartRepository {
		vanishing.CartRepository = inner
		return vanishing
	}))
	lamp := f.product(t, "lamp", 1000, 10)
	chair := f.product(t, "chair", 500, 10)

	_, err := f.carts.Create(ctx, domain.Cart{ClientID: "c1", Basket: mustBasket(t, lamp.ID, 1, 1000)})
	require.NoError(t, err)

	c, err := f.manager.AddItem(ctx, "c1", chair.ID, 2)
	require.NoError(t, err)
	require.Equal(t, []ledger.Entry{{ProductID: chair.ID, Quantity: 2}}, c.Items.Entries())
	require.Equal(t, int64(8), f.stock(t, chair.ID))

	view, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2), view.TotalQuantity)
}

func TestRemoveItem_CartDeletedConcurrentlyFails(t *testing.T) {
	ctx := context.Background()
	vanishing := &vanishingCarts{}
	f := newFixture(t, withCarts(func(inner domain.CartRepository) domain.CartRepository {
		vanishing.CartRepository = inner
		return vanishing
	}))
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.carts.Create(ctx, domain.Cart{ClientID: "c1", Basket: mustBasket(t, lamp.ID, 3, 1000)})
	require.NoError(t, err)

	_, _, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, 1)
	require.ErrorIs(t, err, domain.ErrCartNotFound)
	require.Equal(t, int64(10), f.stock(t, lamp.ID))
}

func mustBasket(t *testing.T, productID string, quantity, price int64) domain.Basket {
	t.Helper()
	var b domain.Basket
	_, err := b.Apply(productID, quantity, price)
	require.NoError(t, err)
	return b
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)
	chair := f.product(t, "chair", 500, 10)

	_, _, err := f.manager.RemoveItem(ctx, "c1", lamp.ID, 1)
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	_, err = f.manager.AddItem(ctx, "c1", lamp.ID, 3)
	require.NoError(t, err)

	_, _, err = f.manager.RemoveItem(ctx, "c1", chair.ID, 1)
	require.ErrorIs(t, err, domain.ErrLineNotFound)

	_, _, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, 4)
	require.ErrorIs(t, err, domain.ErrInsufficientQuantity)

	_, _, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, -1)
	require.ErrorIs(t, err, domain.ErrInvalidQuantity)

	c, exists, err := f.manager.RemoveItem(ctx, "c1", lamp.ID, 1)
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, int64(2), c.TotalQuantity)
	require.Equal(t, int64(8), f.stock(t, lamp.ID))

	_, exists, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, 2)
	require.NoError(t, err)
	require.False(t, exists)
	require.Equal(t, int64(10), f.stock(t, lamp.ID))

	_, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRemoveThenAddRestoresCartAndStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)
	chair := f.product(t, "chair", 500, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 3)
	require.NoError(t, err)
	before, err := f.manager.AddItem(ctx, "c1", chair.ID, 2)
	require.NoError(t, err)

	for _, qty := range []int64{1, 3} {
		_, _, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, qty)
		require.NoError(t, err)
		after, err := f.manager.AddItem(ctx, "c1", lamp.ID, qty)
		require.NoError(t, err)

		// полное удаление позиции переносит её в конец ledger
		if qty < 3 {
			require.Equal(t, before.Items.Entries(), after.Items.Entries(), spew.Sdump(after.Items.Entries()))
		} else {
			require.ElementsMatch(t, before.Items.Entries(), after.Items.Entries(), spew.Sdump(after.Items.Entries()))
		}
		require.Equal(t, before.TotalQuantity, after.TotalQuantity)
		require.Equal(t, before.TotalCostMinor, after.TotalCostMinor)
		require.Equal(t, int64(7), f.stock(t, lamp.ID))
		require.Equal(t, int64(8), f.stock(t, chair.ID))
	}
}

func TestRemoveItem_CartWriteFailureReservesBack(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCarts{}
	f := newFixture(t, withCarts(func(inner domain.CartRepository) domain.CartRepository {
		flaky.CartRepository = inner
		return flaky
	}))
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 3)
	require.NoError(t, err)

	flaky.mu.Lock()
	flaky.updateErr = domain.ErrStoreUnavailable
	flaky.mu.Unlock()

	_, _, err = f.manager.RemoveItem(ctx, "c1", lamp.ID, 1)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	require.Equal(t, int64(7), f.stock(t, lamp.ID))

	view, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(3), view.TotalQuantity)
}

func TestCheckout(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.Checkout(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrCartNotFound)
	none, err := f.orders.List(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = f.manager.AddItem(ctx, "c1", lamp.ID, 2)
	require.NoError(t, err)

	placed, err := f.manager.Checkout(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStateOpen, placed.State)
	require.Equal(t, int64(2), placed.TotalQuantity)
	require.Equal(t, int64(2000), placed.TotalCostMinor)
	require.Len(t, placed.Number, 5)
	require.Equal(t, "c1", placed.ClientID)

	// склад не меняется при оформлении
	require.Equal(t, int64(8), f.stock(t, lamp.ID))

	_, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.False(t, found)

	_, err = f.manager.Checkout(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	stored, err := f.orders.Get(ctx, placed.ID)
	require.NoError(t, err)
	require.Equal(t, placed.Items.Entries(), stored.Items.Entries())
}

type failingPlacer struct{ cart.OrderPlacer }

func (failingPlacer) Create(context.Context, domain.CheckoutSnapshot) (domain.Order, error) {
	return domain.Order{}, fmt.Errorf("create order: %w", domain.ErrStoreUnavailable)
}

func TestCheckout_OrderFailureKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withPlacer(func(inner cart.OrderPlacer) cart.OrderPlacer {
		return failingPlacer{inner}
	}))
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 2)
	require.NoError(t, err)

	_, err = f.manager.Checkout(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	view, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(2), view.TotalQuantity)
}

func TestCheckout_CartDeleteFailureDiscardsOrder(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyCarts{}
	f := newFixture(t, withCarts(func(inner domain.CartRepository) domain.CartRepository {
		flaky.CartRepository = inner
		return flaky
	}))
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 2)
	require.NoError(t, err)

	flaky.mu.Lock()
	flaky.deleteErr = domain.ErrStoreUnavailable
	flaky.mu.Unlock()

	_, err = f.manager.Checkout(ctx, "c1")
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	orders, err := f.orders.ListByClient(ctx, "c1", 0)
	require.NoError(t, err)
	require.Empty(t, orders)
}

func TestGetCart_DeletedProductIsUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	lamp := f.product(t, "lamp", 1000, 10)

	_, err := f.manager.AddItem(ctx, "c1", lamp.ID, 1)
	require.NoError(t, err)
	require.NoError(t, f.catalog.Delete(ctx, lamp.ID))

	view, found, err := f.manager.GetCart(ctx, "c1")
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, view.Lines, 1)
	require.False(t, view.Lines[0].Available)
	require.Equal(t, int64(1000), view.Lines[0].UnitPriceMinor)
}

// Остаток плюс количество во всех корзинах и заказах не меняется при
// параллельной работе многих клиентов.
func TestConservation_ConcurrentClients(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const initial = 60
	lamp := f.product(t, "lamp", 100, initial)

	const clients = 12
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(clientID string, seed int) {
			defer wg.Done()
			for step := 0; step < 10; step++ {
				qty := int64((seed+step)%3 + 1)
				switch (seed + step) % 4 {
				case 0, 1:
					_, _ = f.manager.AddItem(ctx, clientID, lamp.ID, qty)
				case 2:
					_, _, _ = f.manager.RemoveItem(ctx, clientID, lamp.ID, qty)
				case 3:
					if step%5 == 3 {
						_, _ = f.manager.Checkout(ctx, clientID)
					}
				}
			}
		}(fmt.Sprintf("client-%d", i), i)
	}
	wg.Wait()

	var held int64
	for i := 0; i < clients; i++ {
		c, err := f.carts.Get(ctx, fmt.Sprintf("client-%d", i))
		if errors.Is(err, domain.ErrCartNotFound) {
			continue
		}
		require.NoError(t, err)
		require.Empty(t, c.ValidateInvariants(), spew.Sdump(c))
		held += c.TotalQuantity
	}
	orders, err := f.orders.List(ctx, 0)
	require.NoError(t, err)
	for _, o := range orders {
		held += o.TotalQuantity
	}

	stock := f.stock(t, lamp.ID)
	require.GreaterOrEqual(t, stock, int64(0))
	require.Equal(t, int64(initial), stock+held, "stock=%d held=%d", stock, held)
}
