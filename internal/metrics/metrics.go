// Package metrics provides Prometheus instrumentation for the payout service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DispatchesTotal counts dispatch outcomes by phase, method, and status.
	DispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "dispatches_total",
			Help:      "Total dispatch outcomes by phase, method, and status.",
		},
		[]string{"phase", "method", "status"},
	)

	// EligibilityChecksTotal counts recipient eligibility outcomes.
	EligibilityChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "eligibility_checks_total",
			Help:      "Total recipient eligibility outcomes by status and failure code.",
		},
		[]string{"status", "code"},
	)

	// ProviderRequestDuration observes provider call latency.
	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payout",
			Name:      "provider_request_duration_seconds",
			Help:      "Provider request duration in seconds by operation and status class.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "status_class"},
	)

	// StatusEventsTotal counts provider status events normalized by the consumer.
	StatusEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "provider_status_events_total",
			Help:      "Total provider status events by normalized status.",
		},
		[]string{"status"},
	)

	// HTTPRequestsTotal counts internal API requests by method, route, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payout",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests by method, route pattern, and status code.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		DispatchesTotal,
		EligibilityChecksTotal,
		ProviderRequestDuration,
		StatusEventsTotal,
		HTTPRequestsTotal,
	)
}

// ObserveProviderRequest records one provider call. Status 0 means no response.
func ObserveProviderRequest(operation string, statusCode int, elapsed time.Duration) {
	ProviderRequestDuration.WithLabelValues(operation, StatusClass(statusCode)).Observe(elapsed.Seconds())
}

// RecordDispatch counts one dispatch outcome.
func RecordDispatch(phase, method, status string) {
	DispatchesTotal.WithLabelValues(phase, method, status).Inc()
}

// RecordEligibility counts one eligibility outcome. code is empty on success.
func RecordEligibility(status, code string) {
	EligibilityChecksTotal.WithLabelValues(status, code).Inc()
}

// RecordStatusEvent counts one normalized provider status event.
func RecordStatusEvent(status string) {
	StatusEventsTotal.WithLabelValues(status).Inc()
}

// Middleware records request counts using the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Route pattern, not the raw path, to keep label cardinality bounded.
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, StatusClass(status)).Inc()
	})
}

// Handler returns the Prometheus metrics HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StatusClass groups HTTP status codes into buckets (2xx, 3xx, 4xx, 5xx).
func StatusClass(code int) string {
	switch {
	case code <= 0:
		return "error"
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	case code < 600:
		return "5xx"
	default:
		return strconv.Itoa(code)
	}
}
