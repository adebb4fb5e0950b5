// Package rabbitmq публикует запросы на отправку писем во внешний почтовый сервис.
package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// DefaultExchange topic exchange для уведомлений.
const DefaultExchange = "storefront.notifications"

// Channel часть *amqp.Channel, нужная publisher.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher публикует JSON-сообщения в topic exchange.
type Publisher struct {
	ch       Channel
	exchange string
	logger   *log.Entry
	now      func() time.Time
}

// NewPublisher объявляет exchange и возвращает publisher.
func NewPublisher(ch Channel, exchange string, logger *log.Entry) (*Publisher, error) {
	if ch == nil {
		return nil, fmt.Errorf("rabbitmq channel is nil")
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}

	if err := ch.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Publish сериализует msg и отправляет его с ключом routingKey.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    p.now().UTC(),
		AppId:        "storefront",
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.logger.WithFields(log.Fields{
		"exchange":    p.exchange,
		"routing_key": routingKey,
		"message_id":  pub.MessageId,
	}).Debug("message published to rabbitmq")
	return nil
}

// Close закрывает канал.
func (p *Publisher) Close() error {
	return p.ch.Close()
}

// Connection соединение с брокером и канал publisher.
type Connection struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial подключается к RabbitMQ и открывает канал.
func Dial(url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	return &Connection{conn: conn, ch: ch}, nil
}

// Channel возвращает открытый канал.
func (c *Connection) Channel() *amqp.Channel {
	return c.ch
}

// Close закрывает канал и соединение.
func (c *Connection) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

var _ Channel = (*amqp.Channel)(nil)
