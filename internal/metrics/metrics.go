// Package metrics provides Prometheus metrics for the file service.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staticforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staticforge_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// The envelope always travels with HTTP 200, so outcomes are counted
	// by envelope code per operation.
	fileOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staticforge_file_operations_total",
			Help: "File service operations by kind and envelope code",
		},
		[]string{"operation", "code"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "staticforge_upload_bytes_total",
			Help: "Total bytes accepted by upload and content writes",
		},
	)

	listingSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "staticforge_listing_entries",
			Help:    "Number of entries returned by project listings",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	storageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "staticforge_storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "staticforge_storage_operations_total",
			Help: "Storage backend operations by result",
		},
		[]string{"backend", "operation", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordFileOperation records the envelope code of a file service operation.
func RecordFileOperation(operation string, code int) {
	fileOperationsTotal.WithLabelValues(operation, strconv.Itoa(code)).Inc()
}

// RecordUpload records bytes written through the service.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// ObserveListing records the size of a project listing.
func ObserveListing(entries int) {
	listingSize.Observe(float64(entries))
}

// RecordStorageOperation records a storage backend call.
func RecordStorageOperation(backend, operation string, duration time.Duration, success bool) {
	storageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	storageOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

type routeKey struct{}

// Middleware returns HTTP middleware that records request metrics. Requests
// are labelled by the mux pattern reported through Route, which keeps
// project IDs out of labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := new(string)
		r = r.WithContext(context.WithValue(r.Context(), routeKey{}, route))
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		label := *route
		if label == "" {
			label = "unmatched"
		}
		RecordHTTPRequest(r.Method, label, rw.statusCode, time.Since(start))
	})
}

// Route wraps a handler registered on a ServeMux so that Middleware labels
// its requests with the matched pattern.
func Route(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if slot, ok := r.Context().Value(routeKey{}).(*string); ok {
			*slot = r.Pattern
		}
		next.ServeHTTP(w, r)
	})
}
