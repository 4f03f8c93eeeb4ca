package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// messagesHandled counts recommendation requests by outcome.
	// Labels: reason (on_demand, digest), result (ok, error)
	messagesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fintrack",
		Subsystem: "worker",
		Name:      "messages_total",
		Help:      "Recommendation requests handled by reason and result",
	}, []string{"reason", "result"})

	// digestDuration measures one sweep over all users.
	digestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fintrack",
		Subsystem: "worker",
		Name:      "digest_duration_seconds",
		Help:      "Digest sweep latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)
