package domain

import (
	"context"
	"time"
)

// ProductRepository хранит каталог и складские остатки.
type ProductRepository interface {
	// Create сохраняет новый товар. ErrProductExists, если название занято.
	Create(ctx context.Context, product Product) (Product, error)
	// Get возвращает товар или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары в порядке создания; limit <= 0 без ограничения.
	List(ctx context.Context, limit int) ([]Product, error)
	// Update записывает товар, если сохранённая версия равна product.Version.
	// Возвращает сохранённую запись с Version+1 или ErrVersionConflict.
	Update(ctx context.Context, product Product) (Product, error)
	// Delete удаляет товар.
	Delete(ctx context.Context, id string) error
}

// CartRepository хранит корзины клиентов.
type CartRepository interface {
	// Get возвращает корзину клиента или ErrCartNotFound.
	Get(ctx context.Context, clientID string) (Cart, error)
	// Create сохраняет новую корзину. ErrAlreadyExists, если у клиента уже есть корзина.
	Create(ctx context.Context, cart Cart) (Cart, error)
	// Update применяет изменения с учётом optimistic locking.
	Update(ctx context.Context, cart Cart) (Cart, error)
	// Delete удаляет корзину, если её версия равна version.
	Delete(ctx context.Context, clientID string, version int64) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. ErrAlreadyExists, если запись с таким ID уже есть.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByClient возвращает заказы клиента, новые первыми.
	ListByClient(ctx context.Context, clientID string, limit int) ([]Order, error)
	// List возвращает все заказы, новые первыми.
	List(ctx context.Context, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(ctx context.Context, order Order) (Order, error)
	// Delete удаляет заказ; используется для отката неудачного оформления.
	Delete(ctx context.Context, id string) error
}

// StockController резервирует и возвращает товар на склад.
type StockController interface {
	// Reserve списывает quantity со склада.
	Reserve(ctx context.Context, productID string, quantity int64) (Product, error)
	// Release возвращает quantity на склад.
	Release(ctx context.Context, productID string, quantity int64) (Product, error)
}

// ProductLookup отдаёт товар для отображения корзин и заказов.
type ProductLookup interface {
	Lookup(ctx context.Context, productID string) (Product, error)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(ctx context.Context, event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Release освобождает ключ, который ещё в статусе processing, чтобы запрос
	// можно было повторить. Завершённые ключи не трогает. ErrIdempotencyKeyNotFound,
	// если освобождать нечего.
	Release(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Типы агрегатов в outbox.
const (
	AggregateCart    = "cart"
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
