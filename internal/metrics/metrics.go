// Package metrics provides Prometheus instrumentation for journal-engine.
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
	// PositionsCreated counts positions created, plain and planned alike.
	PositionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_positions_created_total",
		Help: "Total number of positions created",
	})

	// TradesRecorded counts recorded fills, partitioned by direction.
	TradesRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_trades_recorded_total",
		Help: "Total number of trades recorded",
	}, []string{"direction"})

	// PriceUpserts counts manually entered price observations.
	PriceUpserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_price_upserts_total",
		Help: "Total number of price records written",
	})

	// PriceConfirmations counts price entries flagged for confirmation
	// because they moved too far from the latest stored close.
	PriceConfirmations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_price_confirmations_total",
		Help: "Price changes flagged for user confirmation",
	})

	// PlanRollbacks counts compound position-plan creates that failed after
	// the journal entry was written and had to be rolled back.
	PlanRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "journal_plan_rollbacks_total",
		Help: "Position plan creations rolled back after a partial write",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "journal_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_http_request_duration_seconds",
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

		// Use the raw path for the label; the API's id segments are the only
		// cardinality source and a personal journal keeps that small.
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
