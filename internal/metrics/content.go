package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Content pipeline Prometheus metrics.
var (
	FetchCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "contentrest",
			Name:      "fetch_cache_total",
			Help:      "Request-scoped record cache lookups",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contentrest",
			Name:      "store_operation_duration_seconds",
			Help:      "Content store call duration in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"driver", "op", "status"},
	)

	DocumentResources = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "contentrest",
			Name:      "document_resources",
			Help:      "Number of resources per serialized document",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
		[]string{"section"}, // "data" / "included"
	)
)

var contentMetricsRegistered bool

// RegisterContentMetrics registers the content pipeline metrics. Must be called once from main.
func RegisterContentMetrics() {
	if contentMetricsRegistered {
		return
	}
	prometheus.MustRegister(FetchCacheTotal)
	prometheus.MustRegister(StoreOperationDuration)
	prometheus.MustRegister(DocumentResources)
	contentMetricsRegistered = true
}

// ObserveStore records one store call.
func ObserveStore(driver, op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StoreOperationDuration.WithLabelValues(driver, op, status).Observe(time.Since(start).Seconds())
}
