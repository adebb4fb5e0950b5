package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxPublisher публикует сообщения outbox в topic их агрегата.
type OutboxPublisher struct {
	producer *Producer
	topics   Topics
	now      func() time.Time
}

// NewOutboxPublisher создаёт паблишер для outbox worker.
func NewOutboxPublisher(producer *Producer, topics Topics) *OutboxPublisher {
	return &OutboxPublisher{
		producer: producer,
		topics:   topics.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Publish отправляет событие; ключ сообщения равен идентификатору агрегата,
// поэтому события одного агрегата попадают в одну партицию по порядку.
func (p *OutboxPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka outbox publisher is not initialized", domain.ErrOutboxPublish)
	}

	topic, err := p.topics.For(msg.AggregateType)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrOutboxPublish, err)
	}

	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.PublishEvent(ctx, topic, key, NewEnvelope(msg, p.now()))
}

// DLQPublisher отправляет уже подготовленное тело сообщения в dead letter topic.
type DLQPublisher struct {
	producer *Producer
	topic    string
}

// NewDLQPublisher создаёт паблишер DLQ для outbox worker.
func NewDLQPublisher(producer *Producer, topic string) *DLQPublisher {
	if topic == "" {
		topic = TopicDeadLetterQueue
	}
	return &DLQPublisher{producer: producer, topic: topic}
}

func (p *DLQPublisher) Publish(ctx context.Context, msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("%w: kafka dlq publisher is not initialized", domain.ErrOutboxPublish)
	}
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}
	return p.producer.Send(ctx, p.topic, key, msg.Payload, map[string]string{
		HeaderEventType: msg.EventType,
		HeaderFailedAt:  time.Now().UTC().Format(time.RFC3339),
	})
}

var (
	_ domain.OutboxPublisher = (*OutboxPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
