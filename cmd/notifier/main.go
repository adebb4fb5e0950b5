// Command notifier читает события заказов из Kafka и публикует запросы
// на письма клиентам в RabbitMQ.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/config"
	"github.com/vladislavdragonenkov/storefront/internal/logging"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/storefront/internal/service/notify"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

type consumer interface {
	Start(ctx context.Context) error
	Stop() error
}

// infra фабрики внешних подключений; в тестах подменяются.
type infra struct {
	dialBroker  func(url string) (rabbitmq.Channel, io.Closer, error)
	newDLQ      func(brokers []string, logger *log.Entry) (*kafka.Producer, error)
	newConsumer func(brokers []string, group string, topics []string, handler kafka.MessageHandler, opts ...kafka.ConsumerOption) (consumer, error)
}

func defaultInfra() infra {
	return infra{
		dialBroker: func(url string) (rabbitmq.Channel, io.Closer, error) {
			conn, err := rabbitmq.Dial(url)
			if err != nil {
				return nil, nil, err
			}
			return conn.Channel(), conn, nil
		},
		newDLQ: kafka.NewProducer,
		newConsumer: func(brokers []string, group string, topics []string, handler kafka.MessageHandler, opts ...kafka.ConsumerOption) (consumer, error) {
			return kafka.NewConsumer(brokers, group, topics, handler, opts...)
		},
	}
}

func run(ctx context.Context, cfg config.Config, deps infra) error {
	logger := logging.Component(log.StandardLogger(), "notifier")

	brokers := make([]string, 0, len(cfg.Kafka.Brokers))
	for _, b := range cfg.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.RabbitMQ.URL) == "" {
		return errors.New("rabbitmq url is required")
	}

	ch, conn, err := deps.dialBroker(cfg.RabbitMQ.URL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close rabbitmq connection")
		}
	}()

	publisher, err := rabbitmq.NewPublisher(ch, cfg.RabbitMQ.Exchange, logger.WithField("layer", "rabbitmq"))
	if err != nil {
		return err
	}

	dlq, err := deps.newDLQ(brokers, logger.WithField("layer", "kafka"))
	if err != nil {
		return fmt.Errorf("init dlq producer: %w", err)
	}
	defer func() {
		if closeErr := dlq.Close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close dlq producer")
		}
	}()

	notifier := notify.New(publisher, logger)
	c, err := deps.newConsumer(brokers, cfg.Kafka.Group, []string{cfg.Kafka.Topics.Order}, notifier.KafkaHandler(),
		kafka.WithDLQ(dlq, cfg.Kafka.Topics.DLQ),
		kafka.WithMaxRetries(cfg.Kafka.MaxRetries),
		kafka.WithRetryDelay(cfg.Kafka.RetryDelay),
		kafka.WithConsumerLogger(logger.WithField("layer", "kafka")),
	)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	logger.WithFields(version.Fields()).WithFields(log.Fields{
		"topic":    cfg.Kafka.Topics.Order,
		"group":    cfg.Kafka.Group,
		"exchange": cfg.RabbitMQ.Exchange,
	}).Info("notifier started")

	<-ctx.Done()
	logger.Info("notifier stopping")
	return c.Stop()
}

func main() {
	fs := flag.NewFlagSet("notifier", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config (fallback: "+config.EnvConfigFile+")")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	closer, err := logging.Setup(log.StandardLogger(), cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, defaultInfra()); err != nil {
		log.WithError(err).Error("notifier exited with error")
		stop()
		_ = closer.Close()
		os.Exit(1)
	}
}
