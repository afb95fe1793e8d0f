// Package metrics provides Prometheus instrumentation for the pain engine.
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
	// LossesScored counts scored loss events, partitioned by wealth tier.
	LossesScored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pain_losses_scored_total",
		Help: "Total number of loss events scored",
	}, []string{"tier"})

	// ValidationRejections counts events rejected at ingestion,
	// partitioned by the violated field.
	ValidationRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pain_validation_rejections_total",
		Help: "Loss events rejected by validation",
	}, []string{"field"})

	// PainMultiplier observes the clamped multiplier distribution.
	PainMultiplier = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pain_multiplier",
		Help:    "Distribution of clamped pain multipliers",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 50, 100, 250, 500, 1000},
	})

	// TrackedAccounts tracks the number of profiles with recorded history.
	TrackedAccounts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pain_tracked_accounts",
		Help: "Number of account profiles with recorded losses",
	})

	// WebSocketClients tracks connected pain-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pain_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pain_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pain_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is small.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer so http.ResponseController can
// reach Hijack for WebSocket upgrades.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
