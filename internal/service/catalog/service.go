// Package catalog управляет каталогом товаров и отдаёт товары для отображения.
package catalog

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/consistency"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/service/events"
)

// Cache кэш товаров для отображения корзин и заказов.
type Cache interface {
	Get(ctx context.Context, productID string) (domain.Product, bool, error)
	Set(ctx context.Context, product domain.Product) error
	Invalidate(ctx context.Context, productID string) error
}

// ProductDraft данные нового товара.
type ProductDraft struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	ImageURL    string `yaml:"image" json:"image"`
	PriceMinor  int64  `yaml:"price_minor" json:"price_minor"`
	Stock       int64  `yaml:"stock" json:"stock"`
}

// ProductPatch изменяемые поля товара; nil означает «не менять».
// Остаток здесь не меняется, для этого есть Restock.
type ProductPatch struct {
	Name        *string
	Description *string
	ImageURL    *string
	PriceMinor  *int64
}

// Service операции каталога.
type Service struct {
	products domain.ProductRepository
	stock    domain.StockController
	cache    Cache
	events   *events.Recorder
	policy   consistency.Policy
	logger   *log.Entry
}

// Option настраивает Service.
type Option func(*Service)

// WithCache подключает кэш товаров.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithEvents подключает запись событий.
func WithEvents(r *events.Recorder) Option {
	return func(s *Service) { s.events = r }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPolicy задаёт политику повторов.
func WithPolicy(p consistency.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService создаёт Service.
func NewService(products domain.ProductRepository, stock domain.StockController, opts ...Option) *Service {
	s := &Service{
		products: products,
		stock:    stock,
		policy:   consistency.DefaultPolicy(),
		logger:   log.New().WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create добавляет товар в каталог. Название должно быть уникальным.
func (s *Service) Create(ctx context.Context, draft ProductDraft) (domain.Product, error) {
	product := domain.Product{
		Name:        strings.TrimSpace(draft.Name),
		Description: strings.TrimSpace(draft.Description),
		ImageURL:    strings.TrimSpace(draft.ImageURL),
		PriceMinor:  draft.PriceMinor,
		Stock:       draft.Stock,
	}
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}

	created, err := s.products.Create(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}
	s.logger.WithFields(log.Fields{
		"product_id": created.ID,
		"name":       created.Name,
	}).Info("товар добавлен в каталог")
	s.record(ctx, events.ProductChanged, created)
	return created, nil
}

// Get возвращает товар из хранилища.
func (s *Service) Get(ctx context.Context, productID string) (domain.Product, error) {
	return consistency.Read(ctx, s.policy, func(ctx context.Context) (domain.Product, error) {
		return s.products.Get(ctx, productID)
	})
}

// List возвращает товары в порядке добавления.
func (s *Service) List(ctx context.Context, limit int) ([]domain.Product, error) {
	return consistency.Read(ctx, s.policy, func(ctx context.Context) ([]domain.Product, error) {
		return s.products.List(ctx, limit)
	})
}

// Edit меняет описательные поля и цену товара.
func (s *Service) Edit(ctx context.Context, productID string, patch ProductPatch) (domain.Product, error) {
	var updated domain.Product
	_, err := consistency.RetryOnConflict(ctx, s.policy, func(int) error {
		product, err := s.Get(ctx, productID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			product.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			product.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.ImageURL != nil {
			product.ImageURL = strings.TrimSpace(*patch.ImageURL)
		}
		if patch.PriceMinor != nil {
			product.PriceMinor = *patch.PriceMinor
		}
		if err := product.Validate(); err != nil {
			return err
		}

		saved, err := s.products.Update(ctx, product)
		if err != nil {
			return err
		}
		updated = saved
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidate(ctx, productID)
	s.record(ctx, events.ProductChanged, updated)
	return updated, nil
}

// Restock пополняет (delta > 0) или списывает (delta < 0) остаток через складской контроллер.
func (s *Service) Restock(ctx context.Context, productID string, delta int64) (domain.Product, error) {
	var (
		product domain.Product
		err     error
	)
	switch {
	case delta > 0:
		product, err = s.stock.Release(ctx, productID, delta)
	case delta < 0:
		product, err = s.stock.Reserve(ctx, productID, -delta)
	default:
		return domain.Product{}, fmt.Errorf("restock: %w: zero delta", domain.ErrInvalidQuantity)
	}
	if err != nil {
		return domain.Product{}, err
	}
	s.record(ctx, events.ProductChanged, product)
	return product, nil
}

// Delete удаляет товар. Заказы и корзины сохраняют свои позиции;
// при отображении такие позиции помечаются недоступными.
func (s *Service) Delete(ctx context.Context, productID string) error {
	if err := s.products.Delete(ctx, productID); err != nil {
		return err
	}
	s.invalidate(ctx, productID)
	s.record(ctx, events.ProductDeleted, domain.Product{ID: productID})
	return nil
}

// Lookup отдаёт товар для отображения, используя кэш, если он подключён.
// Ошибки кэша не мешают чтению из хранилища.
func (s *Service) Lookup(ctx context.Context, productID string) (domain.Product, error) {
	if s.cache != nil {
		product, ok, err := s.cache.Get(ctx, productID)
		switch {
		case err != nil:
			s.logger.WithError(err).WithField("product_id", productID).Debug("кэш товаров недоступен")
		case ok:
			return product, nil
		}
	}

	product, err := s.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, product); err != nil {
			s.logger.WithError(err).WithField("product_id", productID).Debug("не удалось записать товар в кэш")
		}
	}
	return product, nil
}

func (s *Service) invalidate(ctx context.Context, productID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, productID); err != nil {
		s.logger.WithError(err).WithField("product_id", productID).Warn("не удалось сбросить кэш товара")
	}
}

func (s *Service) record(ctx context.Context, eventType string, product domain.Product) {
	s.events.Record(ctx, events.Event{
		AggregateType: domain.AggregateProduct,
		AggregateID:   product.ID,
		Type:          eventType,
		Payload: map[string]any{
			"name":        product.Name,
			"price_minor": product.PriceMinor,
			"stock":       product.Stock,
		},
	})
}

var _ domain.ProductLookup = (*Service)(nil)
