package redis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagcache_operations_total",
			Help: "The total number of cache backend operations by result",
		},
		[]string{"operation", "result"},
	)

	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tagcache_operation_duration_seconds",
			Help: "The cache backend operation latencies in seconds",
		},
		[]string{"operation"},
	)

	gcRemovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagcache_gc_removed_total",
			Help: "Index entries removed by garbage collection",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(gcRemovedTotal)
}

// observe records one operation. result overrides the ok/error outcome when non-empty.
func observe(op string, start time.Time, result string, err error) {
	switch {
	case err != nil:
		result = "error"
	case result == "":
		result = "ok"
	}
	operationsTotal.WithLabelValues(op, result).Inc()
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
