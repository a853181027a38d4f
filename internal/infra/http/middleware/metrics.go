package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
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
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_received_total",
			Help: "Total number of validated leads",
		},
		[]string{"duplicate"},
	)

	leadCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_calls_total",
			Help: "Outbound call attempts by outcome",
		},
		[]string{"status"},
	)

	followUpMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_messages_total",
			Help: "Fallback messages by outcome",
		},
		[]string{"status"},
	)

	followUpScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "followup_scheduled_total",
			Help: "Fallback scheduling attempts by backend and result",
		},
		[]string{"backend", "result"},
	)

	integrationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_errors_total",
			Help: "Total number of integration errors",
		},
		[]string{"service"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern evita um label por id em rotas como /leads/{id}.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func RecordLeadReceived(duplicate bool) {
	leadsReceived.WithLabelValues(strconv.FormatBool(duplicate)).Inc()
}

func RecordLeadCall(status string) {
	leadCalls.WithLabelValues(status).Inc()
}

func RecordFollowUpMessage(status string) {
	followUpMessages.WithLabelValues(status).Inc()
}

func RecordFollowUpScheduled(backend, result string) {
	followUpScheduled.WithLabelValues(backend, result).Inc()
}

func RecordIntegrationError(service string) {
	integrationErrors.WithLabelValues(service).Inc()
}
