package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	orderResultPlaced   = "placed"
	orderResultRejected = "rejected"
	orderResultFailed   = "failed"
)

// Metrics holds the collectors exposed on /metrics. Each API owns its registry.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	orders          *prometheus.CounterVec
	revenue         prometheus.Counter
	reportRuns      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restobill",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "restobill",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restobill",
			Name:      "orders_total",
			Help:      "Orders submitted, by outcome.",
		}, []string{"result"}),
		revenue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "restobill",
			Name:      "order_revenue_total",
			Help:      "Sum of recorded bill totals.",
		}),
		reportRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "restobill",
			Name:      "report_runs_total",
			Help:      "Report generations, by kind.",
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.orders,
		m.revenue,
		m.reportRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeRequest(route, method string, status int, seconds float64) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(seconds)
}

// routeLabel collapses path parameters so label cardinality stays bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/v1/bills/"):
		return "/api/v1/bills/{timestamp}"
	}
	switch path {
	case "/healthz", "/metrics", "/api/v1/auth/login", "/api/v1/menu", "/api/v1/orders",
		"/api/v1/reports", "/api/v1/reports/export", "/api/v1/users":
		return path
	}
	return "other"
}
