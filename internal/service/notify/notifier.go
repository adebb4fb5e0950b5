// Package notify превращает события заказов в запросы на отправку писем.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// RoutingKeyPrefix префикс routing key для писем.
const RoutingKeyPrefix = "mail."

// Sender публикует запрос почтовому сервису.
type Sender interface {
	Publish(ctx context.Context, routingKey string, msg any) error
}

// MailRequest запрос на письмо клиенту. Адрес по ClientID определяет почтовый сервис.
type MailRequest struct {
	Template       string    `json:"template"`
	ClientID       string    `json:"client_id"`
	OrderID        string    `json:"order_id"`
	OrderNumber    string    `json:"order_number,omitempty"`
	Subject        string    `json:"subject"`
	Text           string    `json:"text"`
	TotalCostMinor int64     `json:"total_cost_minor,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// orderPayload поля события заказа, нужные для письма.
type orderPayload struct {
	ClientID  string `json:"client_id"`
	Number    string `json:"number"`
	State     string `json:"state"`
	TotalCost int64  `json:"total_cost"`
}

var subjects = map[string]string{
	domain.TimelineOrderCreated:   "Заказ %s принят",
	domain.TimelineOrderConfirmed: "Заказ %s подтверждён",
	domain.TimelineOrderRejected:  "Заказ %s отклонён",
	domain.TimelineOrderCompleted: "Заказ %s выполнен",
}

// Notifier отправляет письма по событиям заказов.
type Notifier struct {
	sender Sender
	logger *log.Entry
}

// New создаёт Notifier.
func New(sender Sender, logger *log.Entry) *Notifier {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &Notifier{sender: sender, logger: logger}
}

// Supports сообщает, нужно ли письмо для события.
func Supports(eventType string) bool {
	_, ok := subjects[eventType]
	return ok
}

// Build собирает письмо из события. ok=false для событий без писем.
func Build(env kafka.Envelope) (MailRequest, bool, error) {
	subject, ok := subjects[env.EventType]
	if !ok || env.AggregateType != domain.AggregateOrder {
		return MailRequest{}, false, nil
	}

	var payload orderPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		return MailRequest{}, false, fmt.Errorf("decode %s payload: %w", env.EventType, err)
	}
	if payload.ClientID == "" {
		return MailRequest{}, false, fmt.Errorf("%s event for order %s has no client_id", env.EventType, env.AggregateID)
	}

	number := payload.Number
	if number == "" {
		number = env.AggregateID
	}
	req := MailRequest{
		Template:       strings.ReplaceAll(env.EventType, ".", "_"),
		ClientID:       payload.ClientID,
		OrderID:        env.AggregateID,
		OrderNumber:    payload.Number,
		Subject:        fmt.Sprintf(subject, number),
		TotalCostMinor: payload.TotalCost,
		OccurredAt:     env.OccurredAt,
	}
	req.Text = mailText(env.EventType, number, payload.TotalCost)
	return req, true, nil
}

func mailText(eventType, number string, totalCost int64) string {
	switch eventType {
	case domain.TimelineOrderCreated:
		return fmt.Sprintf("Спасибо за покупку! Заказ %s на сумму %s ожидает подтверждения.", number, formatMinor(totalCost))
	case domain.TimelineOrderConfirmed:
		return fmt.Sprintf("Заказ %s подтверждён и готовится к отправке.", number)
	case domain.TimelineOrderRejected:
		return fmt.Sprintf("К сожалению, заказ %s отклонён. Товар возвращён на склад.", number)
	default:
		return fmt.Sprintf("Заказ %s выполнен.", number)
	}
}

func formatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Handle публикует письмо для события. Ошибка отправки возвращается,
// чтобы consumer повторил обработку.
func (n *Notifier) Handle(ctx context.Context, env kafka.Envelope) error {
	req, ok, err := Build(env)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	key := RoutingKeyPrefix + env.EventType
	if err := n.sender.Publish(ctx, key, req); err != nil {
		return fmt.Errorf("publish mail request for order %s: %w", env.AggregateID, err)
	}
	n.logger.WithFields(log.Fields{
		"order_id":    env.AggregateID,
		"client_id":   req.ClientID,
		"routing_key": key,
	}).Info("mail request published")
	return nil
}

// KafkaHandler адаптирует Notifier к consumer. Нечитаемые сообщения
// пропускаются: повтор их не исправит.
func (n *Notifier) KafkaHandler() kafka.MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		env, err := kafka.ParseEnvelope(message)
		if err != nil {
			n.logger.WithError(err).WithFields(log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}).Warn("skipping malformed event")
			return nil
		}
		return n.Handle(ctx, env)
	}
}
