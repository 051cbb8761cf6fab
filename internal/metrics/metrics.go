// Package metrics provides Prometheus metrics for backend operations and
// project persistence.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	backendOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezworkspace_backend_operations_total",
			Help: "Total backend operations",
		},
		[]string{"backend", "op", "status"},
	)

	backendOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ezworkspace_backend_operation_duration_seconds",
			Help:    "Backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	bytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezworkspace_backend_bytes_written_total",
			Help: "Total bytes written or copied through a backend",
		},
		[]string{"backend"},
	)

	projectOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezworkspace_project_operations_total",
			Help: "Total project store operations",
		},
		[]string{"store", "op", "status"},
	)

	projectOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ezworkspace_project_operation_duration_seconds",
			Help:    "Project store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "op"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ezworkspace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordBackendOp records one backend operation.
func RecordBackendOp(backend, op string, duration time.Duration, err error) {
	backendOpsTotal.WithLabelValues(backend, op, status(err)).Inc()
	backendOpDuration.WithLabelValues(backend, op).Observe(duration.Seconds())
}

// RecordBytesWritten adds n to the bytes written through backend.
func RecordBytesWritten(backend string, n uint64) {
	bytesWritten.WithLabelValues(backend).Add(float64(n))
}

// RecordProjectOp records one project store operation.
func RecordProjectOp(store, op string, duration time.Duration, err error) {
	projectOpsTotal.WithLabelValues(store, op, status(err)).Inc()
	projectOpDuration.WithLabelValues(store, op).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request by its route pattern.
func RecordHTTPRequest(method, route string, code int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}
