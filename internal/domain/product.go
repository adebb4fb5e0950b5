package domain

import (
	"fmt"
	"strings"
	"time"
)

// Product позиция каталога вместе с остатком на складе.
type Product struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	// PriceMinor цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// Stock доступный остаток, никогда не отрицательный.
	Stock     int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля товара.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: product name is required", ErrInvalidArgument)
	case strings.TrimSpace(p.Description) == "":
		return fmt.Errorf("%w: product description is required", ErrInvalidArgument)
	case strings.TrimSpace(p.ImageURL) == "":
		return fmt.Errorf("%w: product image is required", ErrInvalidArgument)
	case p.PriceMinor <= 0:
		return fmt.Errorf("%w: product price must be positive", ErrInvalidArgument)
	case p.Stock < 0:
		return fmt.Errorf("%w: product stock must be non-negative", ErrInvalidArgument)
	}
	return nil
}
