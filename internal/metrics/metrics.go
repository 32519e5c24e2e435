// Package metrics registers the process Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchify_provider_requests_total",
			Help: "Upstream provider requests by outcome",
		},
		[]string{"provider", "outcome"}, // ok, rate_limited, status, transport
	)

	RateLimitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchify_rate_limit_retries_total",
			Help: "Retries scheduled after a 429 or retryable failure",
		},
		[]string{"provider"},
	)

	Candidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchify_candidates_total",
			Help: "Candidates processed by the ranking engine",
		},
		[]string{"mode", "result"}, // accepted, rejected, skipped
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fetchify_recommendation_duration_seconds",
			Help:    "Wall time of recommendation requests",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode", "stage"},
	)

	FeatureCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchify_feature_cache_lookups_total",
			Help: "Feature cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fetchify_breaker_state",
			Help: "Circuit breaker state per provider (0 closed, 1 half-open, 2 open)",
		},
		[]string{"provider"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fetchify_jobs_in_flight",
			Help: "Recommendation jobs queued or running",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fetchify_http_requests_total",
			Help: "API requests by route and status class",
		},
		[]string{"route", "code"},
	)
)

// RecordProviderRequest counts one upstream call.
func RecordProviderRequest(provider, outcome string) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
}

// RecordRetry counts one scheduled retry.
func RecordRetry(provider string) {
	RateLimitRetries.WithLabelValues(provider).Inc()
}

// RecordCandidate counts one ranking decision.
func RecordCandidate(mode, result string) {
	Candidates.WithLabelValues(mode, result).Inc()
}

// RecordRecommendation observes the duration of a finished request.
func RecordRecommendation(mode, stage string, d time.Duration) {
	RecommendationDuration.WithLabelValues(mode, stage).Observe(d.Seconds())
}

// RecordCacheLookup counts a feature cache lookup.
func RecordCacheLookup(result string) {
	FeatureCacheLookups.WithLabelValues(result).Inc()
}

// SetBreakerState publishes a breaker state.
func SetBreakerState(provider string, state float64) {
	BreakerState.WithLabelValues(provider).Set(state)
}
