package domain

import (
	"fmt"
	"time"
)

// OrderState описывает жизненный цикл заказа.
type OrderState string

const (
	// OrderStateOpen заказ создан из корзины и ждёт решения администратора.
	OrderStateOpen OrderState = "open"
	// OrderStateConfirmed заказ подтверждён.
	OrderStateConfirmed OrderState = "confirmed"
	// OrderStateRejected заказ отклонён, товар вернулся на склад.
	OrderStateRejected OrderState = "rejected"
	// OrderStateCompleted заказ выполнен.
	OrderStateCompleted OrderState = "completed"
)

// DateLayout формат даты заказа для отображения.
const DateLayout = "2006-01-02"

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderState) Valid() bool {
	switch s {
	case OrderStateOpen, OrderStateConfirmed, OrderStateRejected, OrderStateCompleted:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса нет переходов.
func (s OrderState) Terminal() bool {
	return s == OrderStateRejected || s == OrderStateCompleted
}

// CanTransitionTo проверяет допустимость перехода:
// open -> confirmed | rejected, confirmed -> completed.
func (s OrderState) CanTransitionTo(next OrderState) bool {
	switch s {
	case OrderStateOpen:
		return next == OrderStateConfirmed || next == OrderStateRejected
	case OrderStateConfirmed:
		return next == OrderStateCompleted
	default:
		return false
	}
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID string
	// Number пятизначный номер для людей, уникальность не гарантируется.
	Number   string
	ClientID string
	State    OrderState
	Basket
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Confirmed true для подтверждённых и выполненных заказов.
func (o Order) Confirmed() bool {
	return o.State == OrderStateConfirmed || o.State == OrderStateCompleted
}

// Completed true для выполненных заказов.
func (o Order) Completed() bool {
	return o.State == OrderStateCompleted
}

// Date дата создания в формате yyyy-MM-dd.
func (o Order) Date() string {
	return o.CreatedAt.Format(DateLayout)
}

// TransitionTo переводит заказ в next. Повторное выполнение уже выполненного
// заказа идемпотентно и возвращает changed=false; остальные повторы
// (confirm подтверждённого, reject отклонённого) дают ErrInvalidTransition.
func (o *Order) TransitionTo(next OrderState) (changed bool, err error) {
	if o.State == OrderStateCompleted && next == OrderStateCompleted {
		return false, nil
	}
	if !o.State.CanTransitionTo(next) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.State, next)
	}
	o.State = next
	return true, nil
}

// Clone возвращает независимую копию заказа.
func (o Order) Clone() Order {
	o.Basket = o.Basket.Clone()
	return o
}
