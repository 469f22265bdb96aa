package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selectly",
		Name:      "http_requests_total",
		Help:      "HTTP requests handled, by method and status.",
	}, []string{"method", "status"})

	metricRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "selectly",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	metricChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "selectly",
		Name:      "chat_requests_total",
		Help:      "Chat dispatches, by outcome.",
	}, []string{"outcome"})

	metricConfigSaves = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "selectly",
		Name:      "config_saves_total",
		Help:      "Configuration save operations.",
	})
)

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection; wrapping the writer
		// breaks the Hijacker assertion.
		if r.Header.Get("Upgrade") != "" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metricRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		metricRequestDuration.Observe(time.Since(start).Seconds())
	})
}
