// Package metrics exposes Prometheus collectors for the site builder.
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
	tabFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheets_tab_fetch_total",
			Help: "Total number of spreadsheet tab fetches, labeled by tab and outcome.",
		},
		[]string{"tab", "outcome"},
	)

	tabFetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheets_tab_fetch_duration_seconds",
			Help:    "Histogram of spreadsheet tab fetch latencies, labeled by tab.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"tab"},
	)

	cacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_cache_requests_total",
			Help: "Total number of site cache lookups, labeled by outcome (hit, miss, stale, error).",
		},
		[]string{"outcome"},
	)

	cacheWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_cache_writes_total",
			Help: "Total number of site cache writes, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	memoRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tab_memo_requests_total",
			Help: "Total number of in-process tab memo lookups, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	refreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "site_refresh_total",
			Help: "Total number of snapshot assemblies, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	refreshEnqueuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "site_refresh_enqueued_total",
			Help: "Number of refresh requests handed to the background queue.",
		},
	)

	refreshDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "site_refresh_dropped_total",
			Help: "Number of scheduled refresh requests skipped because the queue was full.",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rate_limit_delay_seconds",
			Help:    "Histogram of outbound rate limit wait durations, labeled by host.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTabFetch records one tab fetch.
func ObserveTabFetch(tab, outcome string, duration time.Duration) {
	tabFetchTotal.WithLabelValues(tab, outcome).Inc()
	tabFetchDurationSeconds.WithLabelValues(tab).Observe(duration.Seconds())
}

// ObserveCacheLookup increments the cache lookup counter.
func ObserveCacheLookup(outcome string) {
	cacheRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheWrite increments the cache write counter.
func ObserveCacheWrite(outcome string) {
	cacheWritesTotal.WithLabelValues(outcome).Inc()
}

// ObserveMemo increments the tab memo counter.
func ObserveMemo(outcome string) {
	memoRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefresh increments the assembly counter.
func ObserveRefresh(outcome string) {
	refreshTotal.WithLabelValues(outcome).Inc()
}

// IncRefreshEnqueued counts a background refresh request.
func IncRefreshEnqueued() {
	refreshEnqueuedTotal.Inc()
}

// IncRefreshDropped counts a refresh request turned away by a full queue.
func IncRefreshDropped() {
	refreshDroppedTotal.Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}
