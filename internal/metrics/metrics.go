// Siteselect - Clinical Trial Site Resolution and Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/siteselect

// Package metrics holds the Prometheus instruments for siteselect. Instruments
// are registered on the default registry at init and exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Resolver Metrics
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_resolutions_total",
			Help: "Facility mentions resolved, by method",
		},
		[]string{"method", "mode"}, // method: exact, fuzzy, created; mode: fuzzy, exact_only
	)

	MentionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_mentions_rejected_total",
			Help: "Facility mentions dropped before resolution",
		},
		[]string{"reason"}, // empty_name, numeric_name, invalid
	)

	ResolverCandidates = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteselect_resolver_candidates",
			Help:    "Number of registry candidates compared per fuzzy lookup",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
		},
	)

	CreateConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteselect_registry_create_conflicts_total",
			Help: "Site inserts that lost a uniqueness race and were retried as a lookup",
		},
	)

	// Geocode Metrics
	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteselect_geocode_cache_hits_total",
			Help: "Geocode lookups served from cache",
		},
	)

	GeocodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "siteselect_geocode_cache_misses_total",
			Help: "Geocode lookups not found or expired in cache",
		},
	)

	GeocodeCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_geocode_calls_total",
			Help: "Outbound geocoder attempts by outcome",
		},
		[]string{"provider", "outcome"}, // outcome: success, not_found, error, rejected
	)

	GeocodeCallDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteselect_geocode_call_duration_seconds",
			Help:    "Duration of outbound geocoder calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_cache_evictions_total",
			Help: "Expired cache entries removed by the janitor",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "siteselect_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Scoring Metrics
	ScoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_scores_computed_total",
			Help: "Match scores computed and stored",
		},
		[]string{"adjusted"},
	)

	OverallScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteselect_overall_score",
			Help:    "Distribution of overall match scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// Recommendation Metrics
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_reports_generated_total",
			Help: "Recommendation reports built",
		},
		[]string{"scenario"},
	)

	TierAssignments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_tier_assignments_total",
			Help: "Sites placed in each recommendation tier",
		},
		[]string{"tier"},
	)

	// Ingest Metrics
	IngestRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_ingest_records_total",
			Help: "Ingested mention records by outcome",
		},
		[]string{"outcome"}, // resolved, rejected, invalid, failed
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteselect_api_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteselect_api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordResolution counts one resolved mention.
func RecordResolution(method string, degraded bool) {
	mode := "fuzzy"
	if degraded {
		mode = "exact_only"
	}
	ResolutionsTotal.WithLabelValues(method, mode).Inc()
}

// RecordGeocodeCall records one outbound geocoder attempt.
func RecordGeocodeCall(provider, outcome string, duration time.Duration) {
	GeocodeCalls.WithLabelValues(provider, outcome).Inc()
	GeocodeCallDuration.Observe(duration.Seconds())
}

// RecordScore records one stored match score.
func RecordScore(overall float64, adjusted bool) {
	ScoresComputed.WithLabelValues(strconv.FormatBool(adjusted)).Inc()
	OverallScore.Observe(overall)
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// SetBreakerState publishes a breaker state as 0 (closed), 1 (half-open) or 2 (open).
func SetBreakerState(name string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
}
