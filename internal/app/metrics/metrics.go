// Package metrics exposes the application's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	placements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelplace",
			Subsystem: "canvas",
			Name:      "placements_total",
			Help:      "Total number of pixel placement attempts.",
		},
		[]string{"outcome"},
	)

	purchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelplace",
			Subsystem: "purchase",
			Name:      "purchases_total",
			Help:      "Total number of pixel pack purchase attempts.",
		},
		[]string{"outcome"},
	)

	settlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "pixelplace",
			Subsystem: "settlement",
			Name:      "transfer_duration_seconds",
			Help:      "Round-trip time of external digipogs transfers.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
	)

	connectedSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "pixelplace",
			Subsystem: "hub",
			Name:      "connected_sessions",
			Help:      "Current number of connected websocket sessions.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pixelplace",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "pixelplace",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)
)

func init() {
	Registry.MustRegister(placements, purchases, settlementDuration, connectedSessions, httpRequests, httpDuration)
}

// ObservePlacement records one placement attempt by outcome
// ("charged", "free", "rejected", "error").
func ObservePlacement(outcome string) {
	placements.WithLabelValues(outcome).Inc()
}

// ObservePurchase records one purchase attempt by outcome
// ("completed", "rejected", "timeout", "error").
func ObservePurchase(outcome string) {
	purchases.WithLabelValues(outcome).Inc()
}

// ObserveSettlement records the round trip of one external transfer.
func ObserveSettlement(d time.Duration) {
	settlementDuration.Observe(d.Seconds())
}

// SessionOpened and SessionClosed track the connected-session gauge.
func SessionOpened() { connectedSessions.Inc() }
func SessionClosed() { connectedSessions.Dec() }

// Handler serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// Middleware records request counts and latency per route.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		httpRequests.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}
