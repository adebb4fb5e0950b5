package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestOutboxPublisher_RoutesByAggregate(t *testing.T) {
	t.Parallel()

	producer, mockProducer := testProducer(t)
	publisher := NewOutboxPublisher(producer, DefaultTopics())

	expectTopic := func(topic, key string) {
		mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
			if msg.Topic != topic {
				return fmt.Errorf("expected topic %s, got %s", topic, msg.Topic)
			}
			k, _ := msg.Key.Encode()
			if string(k) != key {
				return fmt.Errorf("expected key %s, got %s", key, k)
			}
			value, _ := msg.Value.Encode()
			var env Envelope
			if err := json.Unmarshal(value, &env); err != nil {
				return err
			}
			if env.AggregateID != key {
				return fmt.Errorf("unexpected aggregate id %s", env.AggregateID)
			}
			return nil
		})
	}
	expectTopic(TopicCartEvents, "client-1")
	expectTopic(TopicOrderEvents, "order-1")

	ctx := context.Background()
	require.NoError(t, publisher.Publish(ctx, domain.OutboxMessage{
		ID: "m-1", AggregateType: domain.AggregateCart, AggregateID: "client-1", EventType: "cart.item_added", Payload: []byte(`{}`),
	}))
	require.NoError(t, publisher.Publish(ctx, domain.OutboxMessage{
		ID: "m-2", AggregateType: domain.AggregateOrder, AggregateID: "order-1", EventType: "order.created", Payload: []byte(`{}`),
	}))
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	producer, mockProducer := testProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	publisher := NewOutboxPublisher(producer, Topics{})

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID: "m-3", AggregateType: domain.AggregateOrder, AggregateID: "order-2", EventType: "order.rejected",
	})
	require.Error(t, err)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_UnknownAggregate(t *testing.T) {
	t.Parallel()

	producer, mockProducer := testProducer(t)
	publisher := NewOutboxPublisher(producer, Topics{})

	err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "m-4", AggregateType: "invoice"})
	require.ErrorIs(t, err, domain.ErrOutboxPublish)
	require.NoError(t, mockProducer.Close())
}

func TestOutboxPublisher_PublishNilProducer(t *testing.T) {
	t.Parallel()

	err := NewOutboxPublisher(nil, Topics{}).Publish(context.Background(), domain.OutboxMessage{ID: "m-5"})
	require.ErrorIs(t, err, domain.ErrOutboxPublish)

	err = NewDLQPublisher(nil, "").Publish(context.Background(), domain.OutboxMessage{ID: "m-5"})
	require.ErrorIs(t, err, domain.ErrOutboxPublish)
}

func TestDLQPublisher_SendsPayloadAsIs(t *testing.T) {
	t.Parallel()

	producer, mockProducer := testProducer(t)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "custom.dlq" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		value, _ := msg.Value.Encode()
		if string(value) != `{"outbox_id":"m-6"}` {
			return fmt.Errorf("payload was rewrapped: %s", value)
		}
		return nil
	})

	err := NewDLQPublisher(producer, "custom.dlq").Publish(context.Background(), domain.OutboxMessage{
		ID: "m-6", AggregateType: domain.AggregateOrder, AggregateID: "o-6", EventType: "order.created",
		Payload: []byte(`{"outbox_id":"m-6"}`),
	})
	require.NoError(t, err)
	require.NoError(t, mockProducer.Close())
}
