package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/config"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

// testConfig конфигурация с локальными адресами на свободных портах.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.Server.GRPCAddr = "127.0.0.1:0"
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.MetricsAddr = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = time.Second
	cfg.Storage.Driver = config.StorageDriverMemory
	cfg.Kafka.Brokers = nil
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, testConfig())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Driver = "invalid-driver"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_EmptyAuthSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Secret = ""

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "init auth") {
		t.Fatalf("expected auth init error, got %v", err)
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := postgresTestDSNCandidate()
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := testConfig()
	cfg.Storage.Driver = config.StorageDriverPostgres
	cfg.Storage.Postgres.DSN = dsn
	cfg.Storage.Postgres.AutoMigrate = true

	deps, err := initRuntimeDependencies(context.Background(), cfg, log.WithField("test", "postgres-init"))
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer func() { _ = deps.closeFn() }()

	if deps.products == nil || deps.outboxRepo == nil || deps.timelineRepo == nil || deps.idempotencyRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if len(deps.watched) == 0 || deps.watched[0].Name != "postgres" || !deps.watched[0].Critical {
		t.Fatalf("expected postgres to be watched as critical dependency, got %+v", deps.watched)
	}
	monitor := healthcheck.NewMonitor("test")
	monitor.Watch(deps.watched[0])
	if report := monitor.Report(context.Background()); report.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy postgres, got %+v", report)
	}
}

func TestBackgroundWorkers_StopWithoutKafka(t *testing.T) {
	logger := log.WithField("test", "workers")
	deps, err := initRuntimeDependencies(context.Background(), testConfig(), logger)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	workers := startWorkers(context.Background(), testConfig(), deps, nil, nil, logger)
	workers.stop(time.Second, logger)

	var nilWorkers *backgroundWorkers
	nilWorkers.stop(time.Second, logger)
}

func TestCloseKafkaProducer_NonNil(t *testing.T) {
	producer, err := kafka.NewProducer([]string{"localhost:9092"}, log.WithField("test", "kafka"))
	if err != nil {
		t.Skipf("kafka is not available for integration test: %v", err)
	}
	closeKafka(producer, log.WithField("test", "kafka-close"))
}

func postgresTestDSNCandidate() string {
	return strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
}
