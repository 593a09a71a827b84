package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector records request counts and latency.
type MetricsCollector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewMetricsCollector(promRegistry prometheus.Registerer) *MetricsCollector {
	promautoFactory := promauto.With(promRegistry)
	return &MetricsCollector{
		requests: promautoFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "truthstake_http_requests_total",
			Help: "HTTP requests by method, route and status class",
		}, []string{"method", "route", "status"}),
		latency: promautoFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "truthstake_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Middleware labels requests by chi route pattern so ids in the path do
// not explode label cardinality.
func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		mc.requests.WithLabelValues(r.Method, route, statusClass(rw.statusCode)).Inc()
		mc.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func statusClass(code int) string {
	return strconv.Itoa(code/100) + "xx"
}
