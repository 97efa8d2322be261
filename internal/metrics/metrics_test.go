package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTP(reg)
	require.NoError(t, err)

	m.ObserveRequest(http.MethodGet, "/v1/statistics", http.StatusOK, 5*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/v1/statistics", http.StatusOK, 7*time.Millisecond)

	require.InDelta(t, 2, testutil.ToFloat64(m.requestsTotal.WithLabelValues("GET", "200")), 0)
	require.Equal(t, 1, testutil.CollectAndCount(m.requestDuration))
}

func TestNewHTTPRejectsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewHTTP(reg)
	require.NoError(t, err)
	_, err = NewHTTP(reg)
	require.Error(t, err)
}

func TestNilHTTPIgnoresObservations(t *testing.T) {
	t.Parallel()

	var m *HTTP
	require.NotPanics(t, func() {
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := NewHTTP(reg)
	require.NoError(t, err)
	m.ObserveRequest(http.MethodPut, "/v1/statistics/enabled", http.StatusNoContent, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `memscope_http_requests_total{code="204",method="PUT"} 1`), body)
}
