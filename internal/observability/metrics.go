package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sessions is the gauge of tracked gateway sessions by state.
	Sessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "warden_sessions",
		Help: "Number of gateway sessions by state",
	}, []string{"state"})

	// SessionRestarts counts scheduled automatic restarts.
	SessionRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_session_restarts_total",
		Help: "Total number of scheduled session restarts",
	})

	// SessionsGivenUp counts sessions that exhausted their retry budget.
	SessionsGivenUp = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_session_given_up_total",
		Help: "Total number of sessions permanently stopped after repeated failures",
	})

	// InteractionsTotal counts dispatched interactions by kind, route and outcome.
	InteractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_interactions_total",
		Help: "Total interactions dispatched",
	}, []string{"kind", "route", "outcome"})

	// InteractionDuration records handler latency by route.
	InteractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_interaction_duration_seconds",
		Help:    "Interaction handler latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// EnforcementRequests counts enforcement API calls by operation and status code.
	EnforcementRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_enforcement_requests_total",
		Help: "Total enforcement API requests",
	}, []string{"operation", "status"})

	// TrustScores records the distribution of computed alt-detection confidence.
	TrustScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "warden_trust_scores",
		Help:    "Alt-detection confidence scores",
		Buckets: []float64{0, 10, 20, 35, 40, 55, 70, 90, 100},
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warden_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// ActiveStatusFeeds is the number of open status-feed websockets.
	ActiveStatusFeeds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_active_status_feeds",
		Help: "Number of open status feed websocket connections",
	})

	// StatusFeedDrops counts status-feed messages dropped due to backpressure.
	StatusFeedDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_status_feed_drops_total",
		Help: "Total number of status feed messages dropped",
	}, []string{"reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
