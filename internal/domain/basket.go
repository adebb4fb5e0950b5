package domain

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/ledger"
)

// Line позиция корзины или заказа с ценой, зафиксированной при последней записи.
type Line struct {
	ProductID      string
	Quantity       int64
	UnitPriceMinor int64
}

// Basket общее содержимое корзины и заказа: ledger, цены позиций и итоги.
//
// TotalQuantity равен сумме количеств, TotalCostMinor сумме quantity*unitPrice,
// где unitPrice цена товара на момент последнего изменения позиции.
type Basket struct {
	Items          ledger.Ledger
	UnitPrices     map[string]int64
	TotalQuantity  int64
	TotalCostMinor int64
}

// Apply меняет количество товара на delta и переоценивает позицию по unitPriceMinor.
// Возвращает новое количество позиции. При ошибке корзина не меняется.
func (b *Basket) Apply(productID string, delta, unitPriceMinor int64) (int64, error) {
	if unitPriceMinor < 0 {
		return 0, fmt.Errorf("%w: negative unit price", ErrInvalidArgument)
	}

	oldQty, _ := b.Items.Quantity(productID)
	oldPrice := b.UnitPrices[productID]

	items := b.Items.Clone()
	newQty, err := items.Apply(productID, delta)
	if err != nil {
		return 0, err
	}

	prices := make(map[string]int64, len(b.UnitPrices)+1)
	for id, price := range b.UnitPrices {
		prices[id] = price
	}
	if newQty == 0 {
		delete(prices, productID)
	} else {
		prices[productID] = unitPriceMinor
	}

	b.Items = items
	b.UnitPrices = prices
	b.TotalQuantity += newQty - oldQty
	b.TotalCostMinor += newQty*unitPriceMinor - oldQty*oldPrice
	return newQty, nil
}

// Lines возвращает позиции в порядке добавления.
func (b Basket) Lines() []Line {
	entries := b.Items.Entries()
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Line{
			ProductID:      e.ProductID,
			Quantity:       e.Quantity,
			UnitPriceMinor: b.UnitPrices[e.ProductID],
		})
	}
	return lines
}

// Empty сообщает, что позиций нет.
func (b Basket) Empty() bool {
	return b.Items.Empty()
}

// Clone возвращает независимую копию.
func (b Basket) Clone() Basket {
	prices := make(map[string]int64, len(b.UnitPrices))
	for id, price := range b.UnitPrices {
		prices[id] = price
	}
	return Basket{
		Items:          b.Items.Clone(),
		UnitPrices:     prices,
		TotalQuantity:  b.TotalQuantity,
		TotalCostMinor: b.TotalCostMinor,
	}
}

// ValidateInvariants сверяет итоги с позициями и возвращает список замечаний.
func (b Basket) ValidateInvariants() []error {
	var errs []error

	var qty, cost int64
	for _, line := range b.Lines() {
		price, ok := b.UnitPrices[line.ProductID]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: no unit price for %q", ErrInvalidArgument, line.ProductID))
		}
		qty += line.Quantity
		cost += line.Quantity * price
	}
	if len(b.UnitPrices) != b.Items.Len() {
		errs = append(errs, fmt.Errorf("%w: %d prices for %d lines", ErrInvalidArgument, len(b.UnitPrices), b.Items.Len()))
	}
	if qty != b.TotalQuantity {
		errs = append(errs, fmt.Errorf("%w: total quantity %d, lines sum %d", ErrInvalidArgument, b.TotalQuantity, qty))
	}
	if cost != b.TotalCostMinor {
		errs = append(errs, fmt.Errorf("%w: total cost %d, lines sum %d", ErrInvalidArgument, b.TotalCostMinor, cost))
	}
	return errs
}
