package domain

import "time"

// Cart корзина клиента. У клиента не больше одной корзины, ключ ClientID.
// Корзина без позиций не хранится.
type Cart struct {
	ClientID string
	Basket
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone возвращает независимую копию корзины.
func (c Cart) Clone() Cart {
	c.Basket = c.Basket.Clone()
	return c
}

// CheckoutSnapshot снимок корзины, из которого создаётся заказ.
type CheckoutSnapshot struct {
	ClientID    string
	Basket      Basket
	CartVersion int64
}

// Snapshot фиксирует текущее содержимое корзины.
func (c Cart) Snapshot() CheckoutSnapshot {
	return CheckoutSnapshot{
		ClientID:    c.ClientID,
		Basket:      c.Basket.Clone(),
		CartVersion: c.Version,
	}
}
