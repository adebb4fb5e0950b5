// Package app собирает сервис витрины из конфигурации и управляет его жизненным циклом.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	storefrontv1 "github.com/vladislavdragonenkov/storefront/api/storefront/v1"
	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/config"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/storefront/internal/service/grpc"
	httpsvc "github.com/vladislavdragonenkov/storefront/internal/service/http"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	defaultPingTimeout     = 2 * time.Second
	defaultShutdownTimeout = 5 * time.Second
)

// Run поднимает gRPC API, REST-шлюз, HTTP метрик и фоновые воркеры
// и останавливает их после отмены ctx.
func Run(ctx context.Context, cfg config.Config) error {
	logger := log.WithField("component", "app")
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.closeFn(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	commerceMetrics := metrics.NewCommerceMetrics()
	outboxMetrics := metrics.NewOutboxMetrics()
	svc := buildServices(deps, cfg, commerceMetrics, logger)

	resolver, err := auth.NewResolver(auth.Settings{
		Secret:   cfg.Auth.Secret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	// без Kafka сервис работает, события копятся в outbox
	kafkaProducer, _ := initKafkaProducer(cfg.Kafka.Brokers, logger)
	workers := startWorkers(ctx, cfg, deps, kafkaProducer, outboxMetrics, logger)

	grpcMetrics := promgrpc.NewServerMetrics()
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		grpcMetrics.UnaryServerInterceptor(),
		grpcsvc.UnaryAuthInterceptor(resolver),
	))
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	storefrontv1.RegisterStorefrontServer(grpcServer, svc.api)
	grpcMetrics.InitializeMetrics(grpcServer)
	reflection.Register(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(storefrontv1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	healthMonitor := healthcheck.NewMonitor(version.GetVersion())
	for _, dep := range deps.watched {
		healthMonitor.Watch(dep)
	}
	if kafkaProducer != nil {
		healthMonitor.Watch(healthcheck.Kafka(kafkaProducer.Ping, defaultPingTimeout))
	}

	var metricsSrv, gatewaySrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		metricsSrv = startMetricsServer(ctx, cfg.Server.MetricsAddr, logger, healthMonitor)
	}
	if cfg.Server.HTTPAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		gateway := httpsvc.NewGateway(svc.api, resolver,
			httpsvc.WithLogger(logger.WithField("layer", "http")),
			httpsvc.WithMetrics(metrics.NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer)),
		)
		gatewaySrv = startGatewayServer(cfg.Server.HTTPAddr, gateway.Handler(), logger)
	}

	stopAll := func() {
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		shutdownHTTP(gatewaySrv, logger)
		shutdownHTTP(metricsSrv, logger)
		workers.stop(shutdownTimeout, logger)
		closeKafka(kafkaProducer, logger)
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		stopAll()
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(shutdownTimeout):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		stopAll()
		return ctx.Err()
	case err := <-errCh:
		stopAll()
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus и health-пробы.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, monitor *healthcheck.Monitor) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", monitor)
	mux.HandleFunc("/livez", healthcheck.Liveness)
	mux.HandleFunc("/readyz", monitor.Readiness)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// startGatewayServer запускает REST-шлюз. Останавливается через shutdownHTTP.
func startGatewayServer(addr string, handler http.Handler, logger *log.Entry) *http.Server {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("REST шлюз слушает %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("http gateway failed")
		}
	}()
	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
