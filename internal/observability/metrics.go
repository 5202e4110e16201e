package observability

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce         sync.Once
	manageRequestsTotal  *prometheus.CounterVec
	manageLatencySeconds *prometheus.HistogramVec
	manageErrorsTotal    *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors for the manage surface.
func RegisterMetrics() {
	registerOnce.Do(func() {
		manageRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_manage_requests_total",
			Help: "Total number of manage API requests served.",
		}, []string{"method", "route", "status"})

		manageLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "assess_manage_latency_seconds",
			Help:    "Latency distribution for manage API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		manageErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "assess_manage_errors_total",
			Help: "Total number of error responses returned by manage endpoints.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(manageRequestsTotal, manageLatencySeconds, manageErrorsTotal)
	})
}

// MetricsHandler exposes the Prometheus scrape endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	RegisterMetrics()
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ManageRequests exposes the counter for manage requests.
func ManageRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return manageRequestsTotal
}

// ManageLatency exposes the latency histogram for manage requests.
func ManageLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return manageLatencySeconds
}

// ManageErrors exposes the counter for manage error responses.
func ManageErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return manageErrorsTotal
}
