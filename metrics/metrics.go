// Package metrics holds the Prometheus instrumentation for the pick'em server.
//
// Exposed at GET /metrics:
//
//	pickem_http_requests_total              counter   by method/route/status
//	pickem_http_request_duration_seconds    histogram by method/route
//	pickem_pick_writes_total                counter   by result
//	pickem_live_subscribers                 gauge
//	pickem_live_events_total                counter   by type/delivery
//	pickem_resolution_passes_total          counter   by result
//	pickem_outcomes_changed_total           counter
//	pickem_scoring_records_written_total    counter
//	pickem_feed_requests_total              counter   by result
//	pickem_feed_request_duration_seconds    histogram
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequests counts HTTP requests by method, route template and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pickem_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "pickem_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// PickWrites counts pick submissions by result (ok, validation, locked, claimed, contention, error).
var PickWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pickem_pick_writes_total",
	Help: "Pick submissions by result.",
}, []string{"result"})

// LiveSubscribers is the number of connected live clients.
var LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "pickem_live_subscribers",
	Help: "Number of connected live update subscribers.",
})

// LiveEvents counts per-subscriber deliveries by event type and delivery (sent, dropped).
var LiveEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pickem_live_events_total",
	Help: "Live event deliveries by type and result.",
}, []string{"type", "delivery"})

// ResolutionPasses counts resolve passes by result.
var ResolutionPasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pickem_resolution_passes_total",
	Help: "Outcome resolution passes by result.",
}, []string{"result"})

// OutcomesChanged counts individual outcome transitions written by the resolver.
var OutcomesChanged = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pickem_outcomes_changed_total",
	Help: "Pick outcomes changed by the resolver.",
})

// ScoringRecordsWritten counts scoring records upserted.
var ScoringRecordsWritten = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pickem_scoring_records_written_total",
	Help: "Scoring records upserted.",
})

// FeedRequests counts schedule/result feed calls by result.
var FeedRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pickem_feed_requests_total",
	Help: "Schedule/result feed requests by result.",
}, []string{"result"})

// FeedDuration tracks feed latency including retries.
var FeedDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "pickem_feed_request_duration_seconds",
	Help:    "Schedule/result feed latency in seconds, retries included.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
})

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by the mux route template.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := routeLabel(r)
		HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).Inc()
		HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// responseWriter captures the status code. It passes Flush and Hijack through
// so streaming and websocket handlers keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
