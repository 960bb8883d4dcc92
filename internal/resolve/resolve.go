// Package resolve implements the pure Conflict Resolver decision
// function (spec.md §4.C).
package resolve

import (
	"time"

	"github.com/whiteboard/backend/internal/event"
)

// DefaultClearCooldown is the minimum wall-time gap, by event
// timestamp, required between two accepted CLEAR_CANVAS events in the
// same room.
const DefaultClearCooldown = 1000 * time.Millisecond

// Resolve decides whether candidate may be accepted given the room's
// existing log, in acceptance order. It is deterministic and
// referentially transparent: it never reads the clock, relying only
// on timestamps already carried by log and candidate.
//
// Drawing events (DRAW_LINE, DRAW_PATH, ERASE) are always accepted.
// CLEAR_CANVAS is rejected only if the most recent prior CLEAR_CANVAS
// in the log has a timestamp within cooldown of the candidate's
// (comparison is strict '<', so a gap of exactly cooldown is
// accepted). Control events (JOIN_ROOM, LEAVE_ROOM) never reach the
// Resolver — the Coordinator handles them on a separate path.
func Resolve(log []event.Event, candidate event.Event, cooldown time.Duration) (event.Event, bool) {
	switch candidate.Type {
	case event.DrawLine, event.DrawPath, event.Erase:
		return candidate, true
	case event.ClearCanvas:
		last, found := lastClearCanvas(log)
		if !found {
			return candidate, true
		}
		if withinCooldown(last.Timestamp, candidate.Timestamp, cooldown) {
			return event.Event{}, false
		}
		return candidate, true
	default:
		return candidate, true
	}
}

func lastClearCanvas(log []event.Event) (event.Event, bool) {
	for i := len(log) - 1; i >= 0; i-- {
		if log[i].Type == event.ClearCanvas {
			return log[i], true
		}
	}
	return event.Event{}, false
}

func withinCooldown(lastTS, candidateTS int64, cooldown time.Duration) bool {
	diff := candidateTS - lastTS
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff) * time.Millisecond < cooldown
}
