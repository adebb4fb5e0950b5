package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics по умолчанию.
const (
	TopicCartEvents      = "storefront.cart.events"
	TopicOrderEvents     = "storefront.order.events"
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// Topics задаёт topic для каждого типа агрегата.
type Topics struct {
	Cart    string
	Order   string
	Catalog string
	DLQ     string
}

// DefaultTopics возвращает стандартные имена.
func DefaultTopics() Topics {
	return Topics{
		Cart:    TopicCartEvents,
		Order:   TopicOrderEvents,
		Catalog: TopicCatalogEvents,
		DLQ:     TopicDeadLetterQueue,
	}
}

// withDefaults заполняет пустые имена стандартными.
func (t Topics) withDefaults() Topics {
	d := DefaultTopics()
	if t.Cart == "" {
		t.Cart = d.Cart
	}
	if t.Order == "" {
		t.Order = d.Order
	}
	if t.Catalog == "" {
		t.Catalog = d.Catalog
	}
	if t.DLQ == "" {
		t.DLQ = d.DLQ
	}
	return t
}

// For выбирает topic по типу агрегата.
func (t Topics) For(aggregateType string) (string, error) {
	t = t.withDefaults()
	switch aggregateType {
	case domain.AggregateCart:
		return t.Cart, nil
	case domain.AggregateOrder:
		return t.Order, nil
	case domain.AggregateProduct:
		return t.Catalog, nil
	default:
		return "", fmt.Errorf("no topic for aggregate type %q", aggregateType)
	}
}

// Envelope формат события в Kafka.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает сообщение outbox.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	payload := json.RawMessage(msg.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       payload,
		OccurredAt:    msg.CreatedAt,
		PublishedAt:   publishedAt,
	}
}

// ParseEnvelope разбирает событие из сообщения Kafka.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(message.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal event envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("event envelope without event_type at %s/%d/%d", message.Topic, message.Partition, message.Offset)
	}
	return env, nil
}

// DeadLetter тело сообщения в DLQ от consumer.
type DeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

func marshalDeadLetter(letter DeadLetter) ([]byte, error) {
	data, err := json.Marshal(letter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	return data, nil
}

// ParseDeadLetter разбирает сообщение, отправленное consumer в DLQ.
func ParseDeadLetter(message *sarama.ConsumerMessage) (DeadLetter, error) {
	var letter DeadLetter
	if err := json.Unmarshal(message.Value, &letter); err != nil {
		return DeadLetter{}, fmt.Errorf("failed to unmarshal dead letter: %w", err)
	}
	return letter, nil
}
