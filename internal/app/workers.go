package app

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/config"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/idempotency"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
)

// backgroundWorkers фоновые циклы: публикация outbox и очистка idempotency-ключей.
type backgroundWorkers struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// startWorkers запускает cleanup всегда, а outbox worker только при наличии producer.
func startWorkers(
	ctx context.Context,
	cfg config.Config,
	deps *runtimeDependencies,
	producer *kafka.Producer,
	m *metrics.OutboxMetrics,
	logger *log.Entry,
) *backgroundWorkers {
	workerCtx, cancel := context.WithCancel(ctx)
	bw := &backgroundWorkers{cancel: cancel}

	cleanup := idempotency.NewCleanupWorker(deps.idempotencyRepo,
		idempotency.WithLogger(logger.WithField("worker", "idempotency-cleanup")),
		idempotency.WithMetrics(m),
		idempotency.WithInterval(cfg.Idempotency.CleanupInterval),
		idempotency.WithBatchSize(cfg.Idempotency.CleanupBatch),
	)
	bw.run(func() { cleanup.Run(workerCtx) })

	if producer == nil {
		logger.Info("kafka is not configured, outbox records stay pending")
		return bw
	}

	topics := kafkaTopics(cfg.Kafka.Topics)
	worker := outbox.NewWorker(deps.outboxRepo, kafka.NewOutboxPublisher(producer, topics),
		outbox.WithLogger(logger.WithField("worker", "outbox")),
		outbox.WithMetrics(m),
		outbox.WithDLQPublisher(kafka.NewDLQPublisher(producer, topics.DLQ)),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
		outbox.WithRetryBaseDelay(cfg.Outbox.RetryDelay),
	)
	bw.run(func() { worker.Run(workerCtx) })
	return bw
}

func (bw *backgroundWorkers) run(fn func()) {
	bw.wg.Add(1)
	go func() {
		defer bw.wg.Done()
		fn()
	}()
}

// stop отменяет воркеры и ждёт их завершения не дольше timeout.
func (bw *backgroundWorkers) stop(timeout time.Duration, logger *log.Entry) {
	if bw == nil {
		return
	}
	bw.cancel()

	done := make(chan struct{})
	go func() {
		bw.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("background workers did not stop in time")
	}
}
