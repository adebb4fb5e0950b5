// Package events записывает доменные события в transactional outbox и историю заказа.
package events

import (
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

// Типы событий.
const (
	CartItemAdded     = "cart.item_added"
	CartItemRemoved   = "cart.item_removed"
	CartCheckedOut    = "cart.checked_out"
	OrderCreated      = domain.TimelineOrderCreated
	OrderConfirmed    = domain.TimelineOrderConfirmed
	OrderRejected     = domain.TimelineOrderRejected
	OrderCompleted    = domain.TimelineOrderCompleted
	OrderLineAdjusted = domain.TimelineOrderLineAdjusted
	ProductChanged    = "product.changed"
	ProductDeleted    = "product.deleted"
)

// Event доменное событие.
type Event struct {
	AggregateType string
	AggregateID   string
	Type          string
	// Reason попадает в историю заказа.
	Reason   string
	Payload  map[string]any
	Occurred time.Time
}

// Recorder пишет события в outbox и, для заказов, в timeline.
// Ошибки записи логируются и не прерывают бизнес-операцию.
// Методы безопасно вызывать на nil.
type Recorder struct {
	outbox   domain.OutboxRepository
	timeline domain.TimelineRepository
	logger   *log.Entry
	metrics  *metrics.CommerceMetrics
	now      func() time.Time
}

// NewRecorder создаёт Recorder. outbox и timeline могут быть nil.
func NewRecorder(outbox domain.OutboxRepository, timeline domain.TimelineRepository, logger *log.Entry, m *metrics.CommerceMetrics) *Recorder {
	if logger == nil {
		logger = log.New().WithField("component", "events")
	}
	return &Recorder{
		outbox:   outbox,
		timeline: timeline,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Record сохраняет событие.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if r == nil {
		return
	}
	if event.Occurred.IsZero() {
		event.Occurred = r.now()
	}

	entry := r.logger.WithFields(log.Fields{
		"aggregate":    event.AggregateType,
		"aggregate_id": event.AggregateID,
		"event":        event.Type,
	})

	if r.outbox != nil {
		payload := make(map[string]any, len(event.Payload)+3)
		for k, v := range event.Payload {
			payload[k] = v
		}
		payload[event.AggregateType+"_id"] = event.AggregateID
		payload["ts"] = event.Occurred.Format(time.RFC3339Nano)
		if event.Reason != "" {
			payload["reason"] = event.Reason
		}

		data, err := json.Marshal(payload)
		if err != nil {
			entry.WithError(err).Error("не удалось сериализовать событие")
		} else if _, err := r.outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: event.AggregateType,
			AggregateID:   event.AggregateID,
			EventType:     event.Type,
			Payload:       data,
			CreatedAt:     event.Occurred,
		}); err != nil {
			entry.WithError(err).Error("не удалось записать событие в outbox")
		} else {
			r.metrics.RecordOutboxEvent()
		}
	}

	if r.timeline != nil && event.AggregateType == domain.AggregateOrder {
		if err := r.timeline.Append(ctx, domain.TimelineEvent{
			OrderID:  event.AggregateID,
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		}); err != nil {
			entry.WithError(err).Error("не удалось записать событие в историю заказа")
		} else {
			r.metrics.RecordTimelineEvent()
		}
	}
}

// Timeline возвращает историю заказа.
func (r *Recorder) Timeline(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if r == nil || r.timeline == nil {
		return nil, nil
	}
	return r.timeline.List(ctx, orderID)
}
