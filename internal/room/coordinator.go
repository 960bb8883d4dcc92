// Package room implements the Room Coordinator and Room Registry
// (spec.md §4.E, §4.F): the single-writer owner of one room's
// sequence allocator and event log, and the concurrent registry that
// maps room ids to coordinators.
package room

import (
	"errors"
	"sync"
	"time"

	"github.com/whiteboard/backend/internal/event"
	"github.com/whiteboard/backend/internal/eventlog"
	"github.com/whiteboard/backend/internal/metrics"
	"github.com/whiteboard/backend/internal/resolve"
	"github.com/whiteboard/backend/internal/sequence"
)

// ErrConflict is returned by Submit when the Conflict Resolver drops
// the candidate. The caller must not broadcast it.
var ErrConflict = errors.New("event rejected due to conflict resolution")

// ErrSaturated is returned by Submit when the room's log is at its
// soft cap. Re-exported from eventlog so callers need not import it.
var ErrSaturated = eventlog.ErrSaturated

// Coordinator owns the Sequence Allocator and Event Log for one room
// and is the only component permitted to mutate them. All steps of
// Submit are serialized by mu, which is the single piece of
// synchronization that makes per-room sequence numbers match
// append-order — no two Submit calls on the same room ever overlap.
// Other rooms' coordinators proceed fully in parallel.
type Coordinator struct {
	roomID   string
	mu       sync.Mutex
	seq      *sequence.Allocator
	log      *eventlog.Log
	cooldown time.Duration
}

// NewCoordinator creates a Coordinator for roomID with an empty log
// soft-capped at maxEvents (0 = unbounded) and the given clear
// cooldown.
func NewCoordinator(roomID string, maxEvents int, cooldown time.Duration) *Coordinator {
	return &Coordinator{
		roomID:   roomID,
		seq:      sequence.NewAllocator(),
		log:      eventlog.New(maxEvents),
		cooldown: cooldown,
	}
}

// Submit runs the accept pipeline for one candidate event: resolve,
// allocate a sequence number, and append. The candidate must already
// have passed the Event Validator — Submit only arbitrates conflicts
// and orders acceptance.
func (c *Coordinator) Submit(candidate event.Event) (event.Event, error) {
	start := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	existing := c.log.Snapshot()

	resolved, ok := resolve.Resolve(existing, candidate, c.cooldown)
	if !ok {
		metrics.EventsSubmitted.WithLabelValues(string(candidate.Type), "conflict").Inc()
		return event.Event{}, ErrConflict
	}

	if c.log.IsSaturated() {
		metrics.EventsSubmitted.WithLabelValues(string(candidate.Type), "saturated").Inc()
		return event.Event{}, ErrSaturated
	}

	seq := c.seq.Next()
	stored := resolved.WithSequence(seq)

	if err := c.log.Append(stored); err != nil {
		metrics.EventsSubmitted.WithLabelValues(string(candidate.Type), "error").Inc()
		return event.Event{}, err
	}

	metrics.EventsSubmitted.WithLabelValues(string(candidate.Type), "accepted").Inc()
	metrics.SubmitDuration.WithLabelValues(string(candidate.Type)).Observe(time.Since(start).Seconds())
	metrics.RoomLogSize.WithLabelValues(c.roomID).Set(float64(c.log.Len()))

	return stored, nil
}

// State returns the full ordered event log, for ROOM_JOINED.
func (c *Coordinator) State() []event.Event {
	return c.log.Snapshot()
}

// StateSince returns events after seq, for incremental catch-up.
func (c *Coordinator) StateSince(seq uint64) []event.Event {
	return c.log.Since(seq)
}

// Reset clears the log and sequence counter together. This is the
// administrative delete operation; it is never invoked by an
// accepted CLEAR_CANVAS event, which is appended to the log like any
// other event.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Clear()
	c.seq.Reset()
	metrics.RoomLogSize.WithLabelValues(c.roomID).Set(0)
}

// Len returns the current event count, for administrative reporting.
func (c *Coordinator) Len() int {
	return c.log.Len()
}
