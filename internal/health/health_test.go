package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(context.Context) error { return nil }

func down(msg string) PingFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func decodeReport(t *testing.T, w *httptest.ResponseRecorder) Report {
	t.Helper()
	var report Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode report: %v", err)
	}
	return report
}

func TestMonitor_AllDependenciesUp(t *testing.T) {
	monitor := NewMonitor("v1.2.0")
	monitor.Watch(Postgres(up, time.Second))
	monitor.Watch(Redis(up, time.Second))
	monitor.Watch(Kafka(up, time.Second))

	w := httptest.NewRecorder()
	monitor.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type, got %q", ct)
	}
	report := decodeReport(t, w)
	if report.Status != StatusHealthy || report.Version != "v1.2.0" {
		t.Fatalf("unexpected report: %+v", report)
	}
	names := []string{report.Dependencies[0].Name, report.Dependencies[1].Name, report.Dependencies[2].Name}
	if names[0] != "kafka" || names[1] != "postgres" || names[2] != "redis" {
		t.Fatalf("dependencies must be sorted by name, got %v", names)
	}
	if !report.Dependencies[1].Critical || report.Dependencies[0].Critical || report.Dependencies[2].Critical {
		t.Fatalf("only postgres is critical: %+v", report.Dependencies)
	}
}

func TestMonitor_AuxiliaryFailureDegrades(t *testing.T) {
	monitor := NewMonitor("v1.2.0")
	monitor.Watch(Postgres(up, time.Second))
	monitor.Watch(Redis(down("connection refused"), time.Second))
	monitor.Watch(Kafka(down("out of brokers"), time.Second))

	report := monitor.Report(context.Background())
	if report.Status != StatusDegraded || !report.Ready() {
		t.Fatalf("expected degraded but ready, got %+v", report)
	}
	if report.Dependencies[2].Status != StatusDegraded || report.Dependencies[2].Error != "connection refused" {
		t.Fatalf("unexpected redis status: %+v", report.Dependencies[2])
	}

	w := httptest.NewRecorder()
	monitor.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready" {
		t.Fatalf("expected ready, got %d %q", w.Code, w.Body.String())
	}
}

func TestMonitor_StorageFailureTakesServiceOut(t *testing.T) {
	monitor := NewMonitor("v1.2.0")
	monitor.Watch(Postgres(down("too many connections"), time.Second))
	monitor.Watch(Redis(down("connection refused"), time.Second))

	w := httptest.NewRecorder()
	monitor.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if report := decodeReport(t, w); report.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", report.Status)
	}

	w = httptest.NewRecorder()
	monitor.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable || w.Body.String() != "not ready" {
		t.Fatalf("expected not ready, got %d %q", w.Code, w.Body.String())
	}
}

func TestMonitor_SlowPingTimesOut(t *testing.T) {
	monitor := NewMonitor("")
	monitor.Watch(Postgres(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 20*time.Millisecond))

	start := time.Now()
	report := monitor.Report(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("ping was not bounded by timeout: %s", elapsed)
	}
	if report.Status != StatusUnhealthy || report.Dependencies[0].Error == "" {
		t.Fatalf("expected timed out postgres, got %+v", report)
	}
}

func TestMonitor_WatchReplacesAndIgnoresNilPing(t *testing.T) {
	monitor := NewMonitor("")
	monitor.Watch(Postgres(down("starting"), time.Second))
	monitor.Watch(Postgres(up, time.Second))
	monitor.Watch(Kafka(nil, time.Second))

	report := monitor.Report(context.Background())
	if len(report.Dependencies) != 1 || report.Status != StatusHealthy {
		t.Fatalf("expected single healthy postgres, got %+v", report)
	}
}

func TestMonitor_NoDependencies(t *testing.T) {
	report := NewMonitor("dev").Report(context.Background())
	if report.Status != StatusHealthy || len(report.Dependencies) != 0 {
		t.Fatalf("memory mode must be healthy, got %+v", report)
	}
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	Liveness(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("expected ok, got %d %q", w.Code, w.Body.String())
	}
}
