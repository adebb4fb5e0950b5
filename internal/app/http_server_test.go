package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

func TestStartMetricsServer_Endpoints(t *testing.T) {
	metrics.NewCommerceMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := findFreePort(t)
	startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "metrics"), healthcheck.NewMonitor(version.GetVersion()))
	base := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, base+"/livez")

	status, body := get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "storefront_timeline_events_total")

	status, body = get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `"status":"healthy"`)

	status, body = get(t, base+"/livez")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", body)

	status, body = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ready", body)
}

func TestStartMetricsServer_ReadinessFollowsDependencies(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := healthcheck.NewMonitor(version.GetVersion())
	monitor.Watch(healthcheck.Redis(func(context.Context) error {
		return errors.New("connection refused")
	}, 50*time.Millisecond))

	port := findFreePort(t)
	startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "readiness"), monitor)
	base := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, base+"/livez")

	// кэш недоступен: сервис деградирован, но принимает запросы
	status, body := get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `"status":"degraded"`)
	status, _ = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, status)

	monitor.Watch(healthcheck.Postgres(func(context.Context) error {
		return errors.New("too many connections")
	}, 50*time.Millisecond))

	status, body = get(t, base+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Contains(t, body, "too many connections")
	status, body = get(t, base+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "not ready", body)
}

func TestStartMetricsServer_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	port := findFreePort(t)
	srv := startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "metrics-stop"), healthcheck.NewMonitor(version.GetVersion()))
	require.NotNil(t, srv)
	url := fmt.Sprintf("http://localhost:%d/livez", port)
	waitForServer(t, url)

	cancel()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
		}
		return err != nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartMetricsServer_PortInUse(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	// ошибка ListenAndServe только логируется
	srv := startMetricsServer(ctx, listener.Addr().String(), log.WithField("test", "metrics-busy"), healthcheck.NewMonitor(version.GetVersion()))
	require.NotNil(t, srv)
}

func TestStartGatewayServer_ServesHandlerUntilShutdown(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	})

	port := findFreePort(t)
	logger := log.WithField("test", "gateway")
	srv := startGatewayServer(fmt.Sprintf(":%d", port), mux, logger)
	url := fmt.Sprintf("http://localhost:%d/products", port)
	waitForServer(t, url)

	status, body := get(t, url)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "[]", body)

	shutdownHTTP(srv, logger)
	_, err := http.Get(url)
	require.Error(t, err)
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func waitForServer(t *testing.T, url string) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond, "server at %s did not start", url)
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
