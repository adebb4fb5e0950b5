package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт PostgreSQL-реализацию CartRepository.
// Позиции и цены хранятся в JSONB, итоги в отдельных колонках.
func NewCartRepository(store *Store) domain.CartRepository {
	return &cartRepository{db: store.DB()}
}

func (r *cartRepository) Get(ctx context.Context, clientID string) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var (
		cart           domain.Cart
		items, prices  []byte
		totalQ, totalC int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT client_id, items, unit_prices, total_quantity, total_cost_minor, version, created_at, updated_at
		FROM carts
		WHERE client_id = $1
	`, clientID).Scan(
		&cart.ClientID, &items, &prices, &totalQ, &totalC,
		&cart.Version, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Cart{}, domain.ErrCartNotFound
		}
		return domain.Cart{}, unavailable("get cart", err)
	}

	basket, err := decodeBasket(items, prices, totalQ, totalC)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("cart %s: %w", clientID, err)
	}
	cart.Basket = basket
	return cart, nil
}

func (r *cartRepository) Create(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, prices, err := encodeBasket(cart.Basket)
	if err != nil {
		return domain.Cart{}, err
	}

	now := time.Now().UTC()
	cart.Version = 1
	cart.CreatedAt = now
	cart.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO carts (client_id, items, unit_prices, total_quantity, total_cost_minor, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		cart.ClientID, items, prices, cart.TotalQuantity, cart.TotalCostMinor,
		cart.Version, cart.CreatedAt, cart.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Cart{}, domain.ErrAlreadyExists
		}
		return domain.Cart{}, unavailable("insert cart", err)
	}
	return cart, nil
}

func (r *cartRepository) Update(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	items, prices, err := encodeBasket(cart.Basket)
	if err != nil {
		return domain.Cart{}, err
	}
	cart.UpdatedAt = time.Now().UTC()

	err = r.db.QueryRowContext(ctx, `
		UPDATE carts
		SET items = $3,
		    unit_prices = $4,
		    total_quantity = $5,
		    total_cost_minor = $6,
		    version = version + 1,
		    updated_at = $7
		WHERE client_id = $1 AND version = $2
		RETURNING version, created_at
	`,
		cart.ClientID, cart.Version, items, prices, cart.TotalQuantity, cart.TotalCostMinor, cart.UpdatedAt,
	).Scan(&cart.Version, &cart.CreatedAt)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, unavailable("update cart", err)
	}
	return domain.Cart{}, r.missOrConflict(ctx, cart.ClientID)
}

// Delete удаляет корзину при совпадении версии.
func (r *cartRepository) Delete(ctx context.Context, clientID string, version int64) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE client_id = $1 AND version = $2`, clientID, version)
	if err != nil {
		return unavailable("delete cart", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return unavailable("rows affected", err)
	}
	if affected == 0 {
		return r.missOrConflict(ctx, clientID)
	}
	return nil
}

func (r *cartRepository) missOrConflict(ctx context.Context, clientID string) error {
	exists, err := rowExists(ctx, r.db, `SELECT 1 FROM carts WHERE client_id = $1`, clientID)
	if err != nil {
		return unavailable("check cart exists", err)
	}
	if !exists {
		return domain.ErrCartNotFound
	}
	return domain.ErrVersionConflict
}

var _ domain.CartRepository = (*cartRepository)(nil)
