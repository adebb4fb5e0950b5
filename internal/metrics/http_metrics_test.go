package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetricsWithRegisterer(reg)

	m.ObserveRequest(http.MethodGet, "/cart/:userid", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/cart/:userid", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)

	require.Equal(t, 2.0, counterValue(t, m.requests, http.MethodGet, "/cart/:userid", "200"))
	require.Equal(t, 1.0, counterValue(t, m.requests, http.MethodGet, "unmatched", "404"))

	// повторная регистрация возвращает те же коллекторы
	again := NewHTTPMetricsWithRegisterer(reg)
	require.Same(t, m.requests, again.requests)

	var nilMetrics *HTTPMetrics
	nilMetrics.ObserveRequest(http.MethodGet, "/", http.StatusOK, 0)
}
