package domain

import (
	"context"
	"errors"
	"fmt"
)

// LineView позиция корзины или заказа для отображения.
type LineView struct {
	ProductID      string
	Name           string
	ImageURL       string
	Quantity       int64
	UnitPriceMinor int64
	// Available false, если товар уже удалён из каталога.
	Available bool
}

// CartView корзина для отображения.
type CartView struct {
	ClientID       string
	Lines          []LineView
	TotalQuantity  int64
	TotalCostMinor int64
	Version        int64
}

// OrderView заказ для отображения.
type OrderView struct {
	ID             string
	Number         string
	ClientID       string
	State          OrderState
	Confirmed      bool
	Completed      bool
	Date           string
	Lines          []LineView
	TotalQuantity  int64
	TotalCostMinor int64
	Version        int64
}

// OrderDetail заказ вместе с историей изменений.
type OrderDetail struct {
	OrderView
	Timeline []TimelineEvent
}

// ResolveLines дополняет позиции данными каталога. Удалённый товар не считается
// ошибкой: позиция помечается как недоступная.
func ResolveLines(ctx context.Context, lookup ProductLookup, lines []Line) ([]LineView, error) {
	views := make([]LineView, 0, len(lines))
	for _, line := range lines {
		view := LineView{
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
		}
		if lookup != nil {
			product, err := lookup.Lookup(ctx, line.ProductID)
			switch {
			case err == nil:
				view.Name = product.Name
				view.ImageURL = product.ImageURL
				view.Available = true
			case errors.Is(err, ErrProductNotFound):
			default:
				return nil, fmt.Errorf("lookup product %q: %w", line.ProductID, err)
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// NewCartView собирает представление корзины.
func NewCartView(cart Cart, lines []LineView) CartView {
	return CartView{
		ClientID:       cart.ClientID,
		Lines:          lines,
		TotalQuantity:  cart.TotalQuantity,
		TotalCostMinor: cart.TotalCostMinor,
		Version:        cart.Version,
	}
}

// NewOrderView собирает представление заказа.
func NewOrderView(order Order, lines []LineView) OrderView {
	return OrderView{
		ID:             order.ID,
		Number:         order.Number,
		ClientID:       order.ClientID,
		State:          order.State,
		Confirmed:      order.Confirmed(),
		Completed:      order.Completed(),
		Date:           order.Date(),
		Lines:          lines,
		TotalQuantity:  order.TotalQuantity,
		TotalCostMinor: order.TotalCostMinor,
		Version:        order.Version,
	}
}
