package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentorlink_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RequestTransitions counts mentorship status changes by target status and actor.
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentorlink_request_transitions_total",
		Help: "Total mentorship request status transitions",
	}, []string{"to", "actor"})

	// CapacityRejections counts accepts refused because the mentor was full.
	CapacityRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentorlink_capacity_rejections_total",
		Help: "Total accepts rejected by the mentor capacity limit",
	})

	// DedupDeclined counts rows declined by duplicate cleanup runs.
	DedupDeclined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentorlink_dedup_declined_total",
		Help: "Total duplicate mentorship requests declined by cleanup",
	})

	// DedupRuns counts cleanup runs by outcome (applied, dry_run, failed).
	DedupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentorlink_dedup_runs_total",
		Help: "Total duplicate cleanup runs by outcome",
	}, []string{"outcome"})

	// ChatMessages counts chat messages accepted for delivery.
	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mentorlink_chat_messages_total",
		Help: "Total mentorship chat messages sent",
	})

	// ChatDenials counts chat writes refused by the gate, by error code.
	ChatDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mentorlink_chat_denials_total",
		Help: "Total chat writes denied by reason",
	}, []string{"code"})

	// ChatStreamConnections is the gauge of open chat stream WebSockets.
	ChatStreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mentorlink_chat_stream_connections",
		Help: "Number of open chat stream WebSocket connections",
	})
)
