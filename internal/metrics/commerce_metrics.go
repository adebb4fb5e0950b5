package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultConflict = "conflict"
	ResultError    = "error"
)

// CommerceMetrics метрики складских операций, корзин и заказов.
type CommerceMetrics struct {
	// Склад
	stockOperations *prometheus.CounterVec
	casConflicts    *prometheus.CounterVec
	casAttempts     *prometheus.HistogramVec

	// Компенсации stock-first протокола
	compensations *prometheus.CounterVec

	// Корзины и заказы
	checkouts        *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	opDuration       *prometheus.HistogramVec

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewCommerceMetrics регистрирует метрики в prometheus.DefaultRegisterer.
func NewCommerceMetrics() *CommerceMetrics {
	return NewCommerceMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCommerceMetricsWithRegisterer регистрирует метрики в переданном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewCommerceMetricsWithRegisterer(registerer prometheus.Registerer) *CommerceMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &CommerceMetrics{
		stockOperations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_operations_total",
			Help: "Stock reserve/release operations by outcome",
		}, []string{"op", "result"}),
		casConflicts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cas_conflicts_total",
			Help: "Optimistic locking conflicts by aggregate",
		}, []string{"aggregate"}),
		casAttempts: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_cas_attempts",
			Help:    "Attempts needed to commit a compare-and-set write",
			Buckets: []float64{1, 2, 3, 4, 5},
		}, []string{"aggregate"}),
		compensations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_compensations_total",
			Help: "Inverse stock operations executed after a failed aggregate write",
		}, []string{"op", "result"}),
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkouts_total",
			Help: "Cart checkouts by outcome",
		}, []string{"result"}),
		orderTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_transitions_total",
			Help: "Order state transitions by target state",
		}, []string{"state"}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_operation_duration_seconds",
			Help:    "Duration of cart and order operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_outbox_events_total",
			Help: "Total number of events enqueued to outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// Методы ниже безопасно вызывать на nil: сервисы работают и без метрик.

// RecordStockOperation учитывает reserve/release с результатом.
func (m *CommerceMetrics) RecordStockOperation(op, result string) {
	if m == nil {
		return
	}
	m.stockOperations.WithLabelValues(op, result).Inc()
}

// RecordCASConflict учитывает конфликт версий агрегата.
func (m *CommerceMetrics) RecordCASConflict(aggregate string) {
	if m == nil {
		return
	}
	m.casConflicts.WithLabelValues(aggregate).Inc()
}

// RecordCASAttempts записывает число попыток успешной CAS-записи.
func (m *CommerceMetrics) RecordCASAttempts(aggregate string, attempts int) {
	if m == nil {
		return
	}
	m.casAttempts.WithLabelValues(aggregate).Observe(float64(attempts))
}

// RecordCompensation учитывает компенсирующую операцию.
func (m *CommerceMetrics) RecordCompensation(op, result string) {
	if m == nil {
		return
	}
	m.compensations.WithLabelValues(op, result).Inc()
}

// RecordCheckout учитывает оформление заказа.
func (m *CommerceMetrics) RecordCheckout(result string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
}

// RecordOrderTransition учитывает переход заказа в state.
func (m *CommerceMetrics) RecordOrderTransition(state string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(state).Inc()
}

// RecordOperationDuration записывает время выполнения операции.
func (m *CommerceMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *CommerceMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *CommerceMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}
