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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	intakeMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_messages_total",
			Help: "Total number of intake messages processed",
		},
		[]string{"outcome"}, // accepted, duplicate
	)

	triageDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_decisions_total",
			Help: "Total number of triage routing decisions",
		},
		[]string{"route"},
	)

	sessionResetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_session_resets_total",
			Help: "Total number of intake session reset attempts",
		},
		[]string{"outcome"}, // completed, blocked, failed
	)

	aiFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_ai_fallbacks_total",
			Help: "Total number of turns answered with the fallback reply",
		},
	)

	aiCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "intake_ai_call_duration_seconds",
			Help:    "Extraction service call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	notificationsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_created_total",
			Help: "Total number of notification records created",
		},
		[]string{"type"},
	)

	sessionsReadyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_sessions_ready_total",
			Help: "Total number of intake sessions marked ready for review",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath caps path cardinality for metrics labels
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordMessageAccepted records an admitted intake message
func RecordMessageAccepted() {
	intakeMessagesTotal.WithLabelValues("accepted").Inc()
}

// RecordMessageDuplicate records a rejected duplicate message
func RecordMessageDuplicate() {
	intakeMessagesTotal.WithLabelValues("duplicate").Inc()
}

// RecordTriageDecision records a triage routing decision
func RecordTriageDecision(route string) {
	triageDecisionsTotal.WithLabelValues(route).Inc()
}

// RecordSessionReset records a reset attempt outcome
func RecordSessionReset(outcome string) {
	sessionResetsTotal.WithLabelValues(outcome).Inc()
}

// RecordAIFallback records a turn answered with the fallback reply
func RecordAIFallback() {
	aiFallbacksTotal.Inc()
}

// RecordAICall records an extraction service call duration
func RecordAICall(duration time.Duration) {
	aiCallDuration.Observe(duration.Seconds())
}

// RecordNotificationCreated records a notification row write
func RecordNotificationCreated(notifType string) {
	notificationsCreatedTotal.WithLabelValues(notifType).Inc()
}

// RecordSessionReady records a session reaching ready status
func RecordSessionReady() {
	sessionsReadyTotal.Inc()
}
