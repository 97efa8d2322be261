// Package metrics exposes Prometheus collectors for the HTTP surface.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP holds request counters and latency histograms for one registry.
type HTTP struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewHTTP creates the HTTP collectors and registers them with reg.
func NewHTTP(reg prometheus.Registerer) (*HTTP, error) {
	m := &HTTP{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "memscope_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "memscope_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		),
	}
	for _, c := range []prometheus.Collector{m.requestsTotal, m.requestDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register http metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveRequest increments the HTTP request metrics.
func (m *HTTP) ObserveRequest(method, route string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Handler returns an http.Handler exposing everything gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
