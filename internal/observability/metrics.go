package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "code"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_opened_total",
			Help: "Total number of checkout sessions opened at terminals.",
		},
	)
	SessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_sessions_evicted_total",
			Help: "Checkout sessions dropped after the idle timeout.",
		},
	)
	CheckoutsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_completed_total",
			Help: "Checkouts by outcome.",
		},
		[]string{"result"},
	)
	SaleTotalAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "checkout_sale_total_amount",
			Help:    "Total charged per settled sale.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
	PromotionsDiscovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_promotions_discovered_total",
			Help: "Promotions discovered when a product was added.",
		},
		[]string{"promotion_id"},
	)
)

// NewMetricsMiddleware Creates HTTP middleware for collecting Prometheus metrics.
// The path label is the chi route pattern so session ids do not explode cardinality.
func NewMetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				duration := time.Since(start)
				path := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						path = pattern
					}
				}

				httpRequestDuration.WithLabelValues(serviceName, r.Method, path).Observe(duration.Seconds())
				httpRequestsTotal.WithLabelValues(serviceName, r.Method, path, strconv.Itoa(ww.Status())).Inc()
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
