package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// recommendationsEmitted counts records returned to callers.
	// Labels: kind
	recommendationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "engine",
		Name:      "recommendations_total",
		Help:      "Recommendations returned by kind",
	}, []string{"kind"})

	// stageFailures counts analyzer stages that errored or panicked.
	// Labels: stage
	stageFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "engine",
		Name:      "stage_failures_total",
		Help:      "Analysis stages degraded to empty output",
	}, []string{"stage"})

	// generationLatency measures one GenerateRecommendations call.
	// Labels: outcome (ok, empty, error)
	generationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fintrack",
		Subsystem: "engine",
		Name:      "generation_duration_seconds",
		Help:      "Recommendation generation latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"outcome"})

	// anomaliesDetected counts flagged items by detector.
	// Labels: type (fraud, spike)
	anomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "anomaly",
		Name:      "detected_total",
		Help:      "Anomalies flagged by detector type",
	}, []string{"type"})

	// snapshotCacheRequests counts caching provider lookups.
	// Labels: result (hit, miss)
	snapshotCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "cache",
		Name:      "snapshot_requests_total",
		Help:      "Snapshot cache lookups by result",
	}, []string{"result"})

	// recurringPostings counts recurring transactions processed per run.
	// Labels: result (posted, failed, ended)
	recurringPostings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "recurring",
		Name:      "postings_total",
		Help:      "Recurring transactions handled by result",
	}, []string{"result"})
)
