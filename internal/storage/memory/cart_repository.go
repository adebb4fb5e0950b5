package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// cartRepositoryInMemory хранит корзины по ClientID.
type cartRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]domain.Cart
}

// NewCartRepository создаёт in-memory реализацию CartRepository.
func NewCartRepository() domain.CartRepository {
	return &cartRepositoryInMemory{items: make(map[string]domain.Cart)}
}

func (r *cartRepositoryInMemory) Get(ctx context.Context, clientID string) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	cart, ok := r.items[clientID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	return cart.Clone(), nil
}

// Create сохраняет корзину с версией 1, если у клиента её ещё нет.
func (r *cartRepositoryInMemory) Create(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[cart.ClientID]; exists {
		return domain.Cart{}, domain.ErrAlreadyExists
	}

	now := time.Now().UTC()
	cart.Version = 1
	cart.CreatedAt = now
	cart.UpdatedAt = now
	// храним копию, чтобы вызывающий не мог изменить запись
	r.items[cart.ClientID] = cart.Clone()
	return cart, nil
}

func (r *cartRepositoryInMemory) Update(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return domain.Cart{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[cart.ClientID]
	if !ok {
		return domain.Cart{}, domain.ErrCartNotFound
	}
	if current.Version != cart.Version {
		return domain.Cart{}, domain.ErrVersionConflict
	}

	cart.Version++
	cart.CreatedAt = current.CreatedAt
	cart.UpdatedAt = time.Now().UTC()
	r.items[cart.ClientID] = cart.Clone()
	return cart, nil
}

func (r *cartRepositoryInMemory) Delete(ctx context.Context, clientID string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[clientID]
	if !ok {
		return domain.ErrCartNotFound
	}
	if current.Version != version {
		return domain.ErrVersionConflict
	}
	delete(r.items, clientID)
	return nil
}

var _ domain.CartRepository = (*cartRepositoryInMemory)(nil)
