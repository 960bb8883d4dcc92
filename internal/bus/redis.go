// Package bus provides an optional cross-instance presence relay over
// Redis Pub/Sub. It is disabled by default: horizontal scaling is a
// Non-goal of the room state machine (spec.md §1), so every room's
// event log, sequence counter, and membership table live in exactly
// one process. When enabled, the bus only republishes membership
// join/leave hints so a second instance can reflect presence in an
// admin view — it never carries the authoritative event log, and a
// subscriber must never treat a presence hint as a substitute for its
// own Membership Table.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/whiteboard/backend/internal/metrics"
)

// PresenceEvent is the envelope published for a membership change.
type PresenceEvent struct {
	RoomID    string `json:"roomId"`
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"` // "joined" or "left"
}

// Service handles all interaction with the Redis cluster.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// Client returns the underlying Redis client.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

// NewService creates a robust Redis connection with automatic retries.
func NewService(addr, password string) (*Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("redis").Set(stateVal)
		},
	}

	slog.Info("connected to Redis presence bus", "addr", addr)
	return &Service{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

// PublishPresence announces a membership change to other instances.
// Single-instance mode (s == nil, the default) is a silent no-op.
func (s *Service) PublishPresence(ctx context.Context, roomID, sessionID, kind string) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		data, err := json.Marshal(PresenceEvent{RoomID: roomID, SessionID: sessionID, Kind: kind})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal presence event: %w", err)
		}
		channel := fmt.Sprintf("whiteboard:presence:%s", roomID)
		return nil, s.client.Publish(ctx, channel, data).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("publish_presence").Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
			metrics.RedisOperationsTotal.WithLabelValues("publish_presence", "breaker_open").Inc()
			slog.Warn("redis circuit breaker open: dropping presence publish", "roomID", roomID)
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish_presence", "error").Inc()
		slog.Error("redis presence publish failed", "roomID", roomID, "error", err)
		return err
	}

	metrics.RedisOperationsTotal.WithLabelValues("publish_presence", "ok").Inc()
	return nil
}

// SubscribePresence starts a background goroutine that listens for
// presence hints from other instances for one room. handler is
// invoked for every valid message received; it must not block.
func (s *Service) SubscribePresence(ctx context.Context, roomID string, wg *sync.WaitGroup, handler func(PresenceEvent)) {
	if s == nil || s.client == nil {
		return
	}

	channel := fmt.Sprintf("whiteboard:presence:%s", roomID)
	pubsub := s.client.Subscribe(ctx, channel)

	if wg != nil {
		wg.Add(1)
	}
	go func() {
		defer pubsub.Close()
		if wg != nil {
			defer wg.Done()
		}

		slog.Info("subscribed to redis presence channel", "channel", channel)
		ch := pubsub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					slog.Warn("redis presence subscription channel closed", "channel", channel)
					return
				}
				var evt PresenceEvent
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					slog.Error("failed to unmarshal redis presence event", "error", err, "raw", msg.Payload)
					continue
				}
				handler(evt)
			}
		}
	}()
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}

	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("redis").Inc()
		}
		return err
	}
	return nil
}

// Close gracefully shuts down the Redis connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
