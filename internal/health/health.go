// Package health отдаёт состояние зависимостей storefront для /healthz и /readyz.
//
// Зависимости делятся на критичные и вспомогательные. Без PostgreSQL корзины и
// заказы не обслуживаются, поэтому его отказ снимает сервис с балансировки.
// Redis только кэширует каталог, а Kafka получает события из outbox с
// задержкой: их отказ переводит сервис в degraded, но не в not ready.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

const defaultPingTimeout = 2 * time.Second

// PingFunc проверяет доступность зависимости в пределах ctx.
type PingFunc func(ctx context.Context) error

// Dependency внешний ресурс, без которого сервис работает хуже или не работает.
type Dependency struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Ping     PingFunc
}

// Postgres хранилище товаров, корзин, заказов и outbox.
func Postgres(ping PingFunc, timeout time.Duration) Dependency {
	return Dependency{Name: "postgres", Critical: true, Timeout: timeout, Ping: ping}
}

// Redis кэш каталога; при отказе чтения идут напрямую в хранилище.
func Redis(ping PingFunc, timeout time.Duration) Dependency {
	return Dependency{Name: "redis", Timeout: timeout, Ping: ping}
}

// Kafka брокер событий; при отказе записи копятся в outbox.
func Kafka(ping PingFunc, timeout time.Duration) Dependency {
	return Dependency{Name: "kafka", Timeout: timeout, Ping: ping}
}

// DependencyStatus результат одной проверки.
type DependencyStatus struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report тело ответа /healthz.
type Report struct {
	Status        Status             `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Version       string             `json:"version,omitempty"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Dependencies  []DependencyStatus `json:"dependencies,omitempty"`
}

// Ready false, если недоступна хотя бы одна критичная зависимость.
func (r Report) Ready() bool {
	return r.Status != StatusUnhealthy
}

// Monitor опрашивает зарегистрированные зависимости по запросу.
type Monitor struct {
	mu      sync.RWMutex
	deps    map[string]Dependency
	version string
	started time.Time
}

func NewMonitor(version string) *Monitor {
	return &Monitor{
		deps:    make(map[string]Dependency),
		version: version,
		started: time.Now(),
	}
}

// Watch добавляет зависимость или заменяет одноимённую.
func (m *Monitor) Watch(dep Dependency) {
	if dep.Ping == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deps[dep.Name] = dep
}

// Report пингует зависимости параллельно и сводит статусы.
func (m *Monitor) Report(ctx context.Context) Report {
	m.mu.RLock()
	deps := make([]Dependency, 0, len(m.deps))
	for _, dep := range m.deps {
		deps = append(deps, dep)
	}
	m.mu.RUnlock()
	sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })

	results := make([]DependencyStatus, len(deps))
	var wg sync.WaitGroup
	for i, dep := range deps {
		wg.Add(1)
		go func(i int, dep Dependency) {
			defer wg.Done()
			results[i] = ping(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	report := Report{
		Status:        StatusHealthy,
		Timestamp:     time.Now().UTC(),
		Version:       m.version,
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Dependencies:  results,
	}
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case res.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

func ping(ctx context.Context, dep Dependency) DependencyStatus {
	timeout := dep.Timeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := dep.Ping(pingCtx)
	res := DependencyStatus{
		Name:      dep.Name,
		Status:    StatusHealthy,
		Critical:  dep.Critical,
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
		res.Status = StatusDegraded
		if dep.Critical {
			res.Status = StatusUnhealthy
		}
	}
	return res
}

// ServeHTTP отдаёт полный отчёт; 503 только при отказе критичной зависимости.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := m.Report(r.Context())

	code := http.StatusOK
	if !report.Ready() {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// Readiness отвечает "ready", пока доступны критичные зависимости.
func (m *Monitor) Readiness(w http.ResponseWriter, r *http.Request) {
	if !m.Report(r.Context()).Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Liveness всегда 200: процесс жив, пока отвечает.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
