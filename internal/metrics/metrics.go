// Package metrics provides Prometheus instrumentation for the portfolio tracker.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QuotesResolved counts resolved quotes by the tier that produced them.
	QuotesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_quotes_resolved_total",
		Help: "Quotes resolved, partitioned by source tag",
	}, []string{"source"})

	// QuoteTierFailures counts fall-throughs of the quote fallback chain.
	QuoteTierFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_quote_tier_failures_total",
		Help: "Quote tiers that failed and fell through to the next one",
	}, []string{"tier"})

	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "portfolio_reconcile_duration_seconds",
		Help:    "Position reconciliation latency in seconds, quote resolution included",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 4, 8, 16},
	})

	ReconcileTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_reconcile_total",
		Help: "Position reconciliations by result",
	}, []string{"result"})

	// TransactionsRejected counts trades refused before any write.
	TransactionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_transactions_rejected_total",
		Help: "Transactions rejected by validation",
	}, []string{"reason"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portfolio_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labelled with the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
