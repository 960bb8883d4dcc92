// Package metrics declares the Prometheus instrumentation for the
// whiteboard backend.
//
// Naming convention: namespace_subsystem_name
//   - namespace: whiteboard (application-level grouping)
//   - subsystem: websocket, room, redis, rate_limit (feature-level grouping)
//   - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
//   - Gauge: current state (connections, rooms, log size)
//   - Counter: cumulative events (events accepted/rejected, errors)
//   - Histogram: latency distributions (submit/broadcast duration)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSocketConnections tracks the current number of open sessions.
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whiteboard",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket sessions",
	})

	// ActiveRooms tracks the current number of rooms in the registry.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "whiteboard",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomMembers tracks the number of connected sessions per room.
	RoomMembers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whiteboard",
		Subsystem: "room",
		Name:      "members_count",
		Help:      "Number of sessions currently joined to each room",
	}, []string{"room_id"})

	// RoomLogSize tracks the number of events currently held in each room's log.
	RoomLogSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whiteboard",
		Subsystem: "room",
		Name:      "log_size",
		Help:      "Number of events currently retained in a room's event log",
	}, []string{"room_id"})

	// EventsSubmitted tracks every submit() outcome by event type and result.
	EventsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "room",
		Name:      "events_submitted_total",
		Help:      "Total events submitted to a room, labeled by type and outcome",
	}, []string{"event_type", "outcome"})

	// SubmitDuration tracks how long Room Coordinator.Submit takes end to end.
	SubmitDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whiteboard",
		Subsystem: "room",
		Name:      "submit_duration_seconds",
		Help:      "Time spent resolving, sequencing, and appending one accepted event",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
	}, []string{"event_type"})

	// BroadcastFanout tracks the number of sessions a single broadcast reached.
	BroadcastFanout = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whiteboard",
		Subsystem: "broadcast",
		Name:      "fanout_size",
		Help:      "Number of sessions a single broadcast was delivered to",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
	}, []string{"event_type"})

	// BroadcastDropped counts messages dropped because a session's send
	// buffer was full (slow-reader protection, spec.md §5 backpressure).
	BroadcastDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "broadcast",
		Name:      "dropped_total",
		Help:      "Messages dropped because a session's outbound buffer was full",
	}, []string{"event_type"})

	// WebsocketFrames tracks inbound frame handling outcomes.
	WebsocketFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "websocket",
		Name:      "frames_total",
		Help:      "Total inbound WebSocket frames processed",
	}, []string{"frame_type", "status"})

	// CircuitBreakerState tracks the current state of the circuit breaker
	// (0: Closed, 1: Open, 2: Half-Open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "whiteboard",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by the circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks requests rejected by rate limiting.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks Redis bus operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "whiteboard",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "whiteboard",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// IncConnection records a new session coming online.
func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

// DecConnection records a session going offline.
func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
