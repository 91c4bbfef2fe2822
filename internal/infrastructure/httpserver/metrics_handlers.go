package httpserver

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagcache_http_requests_total",
			Help: "HTTP requests served, by method, route and status",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagcache_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal)
	prometheus.MustRegister(requestDuration)
}

func GetRequestsTotal() *prometheus.CounterVec {
	return requestsTotal
}

func GetRequestDuration() *prometheus.HistogramVec {
	return requestDuration
}

// LogMetricsInitialization logs the exported metric families at startup.
func (s *Server) LogMetricsInitialization() {
	s.logger.WithFields(logrus.Fields{
		"http":             "tagcache_http_requests_total, tagcache_http_request_duration_seconds",
		"cache":            "tagcache_operations_total, tagcache_operation_duration_seconds, tagcache_gc_removed_total",
		"metrics_endpoint": "/metrics",
	}).Info("prometheus metrics registered")
}

func (s *Server) metricsEndpoint(c echo.Context) error {
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
