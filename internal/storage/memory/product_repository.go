package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type productRecord struct {
	product domain.Product
	seq     uint64
}

// productRepositoryInMemory хранит каталог в памяти (для разработки и тестов).
type productRepositoryInMemory struct {
	mu    sync.RWMutex
	items map[string]productRecord
	seq   uint64
}

// NewProductRepository создаёт in-memory реализацию ProductRepository.
func NewProductRepository() domain.ProductRepository {
	return &productRepositoryInMemory{items: make(map[string]productRecord)}
}

// Create сохраняет товар с версией 1. Пустой ID заполняется uuid.
func (r *productRepositoryInMemory) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, exists := r.items[product.ID]; exists {
		return domain.Product{}, domain.ErrAlreadyExists
	}
	if r.nameTakenLocked(product.Name, "") {
		return domain.Product{}, domain.ErrProductExists
	}

	now := time.Now().UTC()
	product.Version = 1
	product.CreatedAt = now
	product.UpdatedAt = now

	r.seq++
	r.items[product.ID] = productRecord{product: product, seq: r.seq}
	return product, nil
}

func (r *productRepositoryInMemory) Get(ctx context.Context, id string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return rec.product, nil
}

func (r *productRepositoryInMemory) List(ctx context.Context, limit int) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]productRecord, 0, len(r.items))
	for _, rec := range r.items {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })

	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	result := make([]domain.Product, 0, len(records))
	for _, rec := range records {
		result = append(result, rec.product)
	}
	return result, nil
}

// Update перезаписывает товар, проверяя версию (optimistic locking).
func (r *productRepositoryInMemory) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if current.product.Version != product.Version {
		return domain.Product{}, domain.ErrVersionConflict
	}
	if r.nameTakenLocked(product.Name, product.ID) {
		return domain.Product{}, domain.ErrProductExists
	}

	product.Version++
	product.CreatedAt = current.product.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	r.items[product.ID] = productRecord{product: product, seq: current.seq}
	return product, nil
}

func (r *productRepositoryInMemory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *productRepositoryInMemory) nameTakenLocked(name, exceptID string) bool {
	name = strings.TrimSpace(name)
	for id, rec := range r.items {
		if id != exceptID && strings.TrimSpace(rec.product.Name) == name {
			return true
		}
	}
	return false
}

var _ domain.ProductRepository = (*productRepositoryInMemory)(nil)
