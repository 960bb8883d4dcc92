// Package eventlog implements the per-room append-only Event Log
// (spec.md §4.D).
package eventlog

import (
	"errors"
	"sync"

	"github.com/whiteboard/backend/internal/event"
)

// ErrSaturated is returned by Append when a room's log has reached its
// configured soft cap. The reference policy is to reject further
// appends rather than ring-buffer or silently drop (spec.md §9, OQ1).
var ErrSaturated = errors.New("event log saturated")

// ErrOutOfOrder is returned by Append if the caller attempts to append
// an event whose sequence does not immediately follow the last one.
// The Room Coordinator is the only legitimate caller and always
// satisfies this; a violation here indicates a coordinator bug.
var ErrOutOfOrder = errors.New("event log append out of order")

// Log is an ordered, in-memory, append-only sequence of accepted
// events for one room.
type Log struct {
	mu     sync.RWMutex
	events []event.Event
	max    int
}

// New returns an empty log soft-capped at maxEvents. A maxEvents of 0
// means unbounded.
func New(maxEvents int) *Log {
	return &Log{max: maxEvents}
}

// Append adds an accepted event to the end of the log. e.Sequence must
// equal the log's current length + 1.
func (l *Log) Append(e event.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.max > 0 && len(l.events) >= l.max {
		return ErrSaturated
	}
	if e.Sequence != uint64(len(l.events))+1 {
		return ErrOutOfOrder
	}

	l.events = append(l.events, e)
	return nil
}

// Snapshot returns the full ordered log.
func (l *Log) Snapshot() []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]event.Event, len(l.events))
	copy(out, l.events)
	return out
}

// Since returns events with sequence strictly greater than seq, in
// order. Since(0) is equivalent to Snapshot().
func (l *Log) Since(seq uint64) []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if seq >= uint64(len(l.events)) {
		return []event.Event{}
	}
	out := make([]event.Event, len(l.events)-int(seq))
	copy(out, l.events[seq:])
	return out
}

// Len returns the number of events currently retained.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.events)
}

// IsSaturated reports whether the log is at its soft cap and the next
// Append would fail with ErrSaturated.
func (l *Log) IsSaturated() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.max > 0 && len(l.events) >= l.max
}

// Clear drops all events. The companion sequence allocator reset is
// the Room Coordinator's responsibility, since the two must be reset
// together atomically from the coordinator's single-writer section.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}
