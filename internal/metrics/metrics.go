package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchAttempts counts bio fetch attempts by outcome
	// (success or the error code of the failure).
	FetchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bio_fetch_attempts_total",
			Help: "Total number of bio document fetch attempts",
		},
		[]string{"outcome"},
	)

	// FetchAttemptDuration tracks how long each decided attempt took.
	FetchAttemptDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bio_fetch_attempt_duration_seconds",
			Help:    "Bio document fetch attempt duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// FetchLateResults counts fetches that completed after their attempt
	// had already timed out.
	FetchLateResults = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bio_fetch_late_results_total",
			Help: "Fetch results discarded because the attempt had already timed out",
		},
	)

	// StoreRequests counts remote config store requests per backend.
	StoreRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bio_store_requests_total",
			Help: "Total number of remote config store requests",
		},
		[]string{"backend", "result"},
	)

	// LoadTransitions counts load state transitions by target phase.
	LoadTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bio_load_transitions_total",
			Help: "Total number of load state transitions",
		},
		[]string{"phase"},
	)

	// LoadPhase is 1 for the current load phase and 0 for the others.
	LoadPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bio_load_phase",
			Help: "Current load phase of the page content",
		},
		[]string{"phase"},
	)
)
