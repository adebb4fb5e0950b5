package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	metric := &dto.Metric{}
	if err := vec.WithLabelValues(labels...).Write(metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}

func TestNewCommerceMetricsWithRegisterer(t *testing.T) {
	m := NewCommerceMetricsWithRegisterer(prometheus.NewRegistry())

	if m.stockOperations == nil || m.casConflicts == nil || m.casAttempts == nil {
		t.Fatal("stock collectors should not be nil")
	}
	if m.compensations == nil || m.checkouts == nil || m.orderTransitions == nil || m.opDuration == nil {
		t.Fatal("aggregate collectors should not be nil")
	}
	if m.timelineEvents == nil || m.outboxEvents == nil {
		t.Fatal("event counters should not be nil")
	}
}

func TestRegisterTwiceReturnsExistingCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewCommerceMetricsWithRegisterer(registry)
	second := NewCommerceMetricsWithRegisterer(registry)

	first.RecordStockOperation("reserve", ResultOK)
	second.RecordStockOperation("reserve", ResultOK)

	if got := counterValue(t, first.stockOperations, "reserve", ResultOK); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordCounters(t *testing.T) {
	m := NewCommerceMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCASConflict("product")
	m.RecordCASConflict("product")
	m.RecordCompensation("release", ResultError)
	m.RecordCheckout(ResultOK)
	m.RecordOrderTransition("confirmed")

	if got := counterValue(t, m.casConflicts, "product"); got != 2 {
		t.Fatalf("expected 2 conflicts, got %v", got)
	}
	if got := counterValue(t, m.compensations, "release", ResultError); got != 1 {
		t.Fatalf("expected 1 failed compensation, got %v", got)
	}
	if got := counterValue(t, m.checkouts, ResultOK); got != 1 {
		t.Fatalf("expected 1 checkout, got %v", got)
	}
	if got := counterValue(t, m.orderTransitions, "confirmed"); got != 1 {
		t.Fatalf("expected 1 transition, got %v", got)
	}
}

func TestRecordHistograms(t *testing.T) {
	m := NewCommerceMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordCASAttempts("cart", 3)
	m.RecordOperationDuration("add_item", 15*time.Millisecond)

	metric := &dto.Metric{}
	observer, err := m.casAttempts.GetMetricWithLabelValues("cart")
	if err != nil {
		t.Fatalf("get histogram: %v", err)
	}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 1 || metric.GetHistogram().GetSampleSum() != 3 {
		t.Fatalf("unexpected histogram state: %+v", metric.GetHistogram())
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *CommerceMetrics
	m.RecordStockOperation("reserve", ResultOK)
	m.RecordCASConflict("product")
	m.RecordCASAttempts("product", 1)
	m.RecordCompensation("release", ResultOK)
	m.RecordCheckout(ResultOK)
	m.RecordOrderTransition("open")
	m.RecordOperationDuration("checkout", time.Millisecond)
	m.RecordTimelineEvent()
	m.RecordOutboxEvent()
}
