package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/ledger"
)

// unavailable помечает ошибку драйвера как временную недоступность хранилища.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// encodeBasket раскладывает корзину на JSONB-колонки items и unit_prices.
func encodeBasket(b domain.Basket) (items, prices []byte, err error) {
	items, err = json.Marshal(b.Items)
	if err != nil {
		return nil, nil, fmt.Errorf("encode items: %w", err)
	}
	unitPrices := b.UnitPrices
	if unitPrices == nil {
		unitPrices = map[string]int64{}
	}
	prices, err = json.Marshal(unitPrices)
	if err != nil {
		return nil, nil, fmt.Errorf("encode unit prices: %w", err)
	}
	return items, prices, nil
}

func decodeBasket(items, prices []byte, totalQty, totalCost int64) (domain.Basket, error) {
	var b domain.Basket
	if len(items) > 0 {
		var l ledger.Ledger
		if err := json.Unmarshal(items, &l); err != nil {
			return domain.Basket{}, fmt.Errorf("decode items: %w", err)
		}
		b.Items = l
	}
	b.UnitPrices = map[string]int64{}
	if len(prices) > 0 {
		if err := json.Unmarshal(prices, &b.UnitPrices); err != nil {
			return domain.Basket{}, fmt.Errorf("decode unit prices: %w", err)
		}
	}
	b.TotalQuantity = totalQty
	b.TotalCostMinor = totalCost
	return b, nil
}
