// Package redis кэширует товары каталога в Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	keyPrefix  = "storefront:product:"
	defaultTTL = 5 * time.Minute
)

// cachedProduct формат записи в Redis.
type cachedProduct struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	PriceMinor  int64     `json:"price_minor"`
	Stock       int64     `json:"stock"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProductCache read-through кэш товаров для отображения корзин и заказов.
type ProductCache struct {
	rdb goredis.UniversalClient
	ttl time.Duration
}

// NewProductCache создаёт кэш поверх клиента. ttl <= 0 заменяется на 5 минут.
func NewProductCache(rdb goredis.UniversalClient, ttl time.Duration) *ProductCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &ProductCache{rdb: rdb, ttl: ttl}
}

// Dial открывает клиента и проверяет доступность сервера.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w: %w", addr, domain.ErrStoreUnavailable, err)
	}
	return rdb, nil
}

func productKey(id string) string {
	return keyPrefix + id
}

// Get возвращает товар из кэша; промах даёт ok=false без ошибки.
func (c *ProductCache) Get(ctx context.Context, productID string) (domain.Product, bool, error) {
	raw, err := c.rdb.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("redis get: %w: %w", domain.ErrStoreUnavailable, err)
	}

	product, err := decodeProduct(raw)
	if err != nil {
		// битую запись считаем промахом, её перезапишет Set
		return domain.Product{}, false, nil
	}
	return product, true, nil
}

func (c *ProductCache) Set(ctx context.Context, product domain.Product) error {
	raw, err := encodeProduct(product)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, productKey(product.ID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (c *ProductCache) Invalidate(ctx context.Context, productID string) error {
	if err := c.rdb.Del(ctx, productKey(productID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func encodeProduct(p domain.Product) ([]byte, error) {
	return json.Marshal(cachedProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ImageURL:    p.ImageURL,
		PriceMinor:  p.PriceMinor,
		Stock:       p.Stock,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	})
}

func decodeProduct(raw []byte) (domain.Product, error) {
	var c cachedProduct
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Product{}, err
	}
	if c.ID == "" {
		return domain.Product{}, errors.New("cached product without id")
	}
	return domain.Product{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ImageURL:    c.ImageURL,
		PriceMinor:  c.PriceMinor,
		Stock:       c.Stock,
		Version:     c.Version,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}, nil
}

// Ping проверяет доступность Redis для health-проверки.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
