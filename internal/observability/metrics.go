// Package observability exposes Prometheus metrics for the engine and
// the catalog server. Everything here is observational; nothing feeds
// back into scheduling decisions.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	fetchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_fetch_requests_total",
			Help: "Viewport data fetches by entity type and outcome.",
		},
		[]string{"entity", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "viewport_fetch_duration_seconds",
			Help:    "Wall-clock duration of viewport data fetches.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"entity"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_fetch_retries_total",
			Help: "Automatic rate-limit retries scheduled by the fetch coordinator.",
		},
		[]string{"entity"},
	)

	staleResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "viewport_stale_responses_total",
			Help: "Fetch responses discarded because parameters changed in flight.",
		},
		[]string{"entity"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_cache_results_total",
			Help: "Client-side result cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	geolocationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geolocation_requests_total",
			Help: "Geolocation position requests by outcome.",
		},
		[]string{"outcome"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveFetch(entity, outcome string, durationSeconds float64) {
	fetchRequestsTotal.WithLabelValues(entity, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(entity).Observe(durationSeconds)
}

func IncFetchRetry(entity string) {
	fetchRetriesTotal.WithLabelValues(entity).Inc()
}

func IncStaleResponse(entity string) {
	staleResponsesTotal.WithLabelValues(entity).Inc()
}

func IncCacheHit()  { cacheResults.WithLabelValues("hit").Inc() }
func IncCacheMiss() { cacheResults.WithLabelValues("miss").Inc() }

func IncGeolocation(outcome string) {
	geolocationTotal.WithLabelValues(outcome).Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
