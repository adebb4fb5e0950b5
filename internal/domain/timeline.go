package domain

import "time"

// Типы событий, которые попадают в историю заказа.
const (
	TimelineOrderCreated      = "order.created"
	TimelineOrderConfirmed    = "order.confirmed"
	TimelineOrderRejected     = "order.rejected"
	TimelineOrderCompleted    = "order.completed"
	TimelineOrderLineAdjusted = "order.line_adjusted"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID string
	Type    string
	// Reason свободный комментарий: кто и почему изменил заказ.
	Reason   string
	Occurred time.Time
}
