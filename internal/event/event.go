// Package event defines the canonical whiteboard event shape shared by
// the validator, conflict resolver, event log, room coordinator,
// transport, and administrative HTTP surface.
package event

// Type is the closed set of wire event tags.
type Type string

const (
	DrawLine    Type = "DRAW_LINE"
	DrawPath    Type = "DRAW_PATH"
	Erase       Type = "ERASE"
	ClearCanvas Type = "CLEAR_CANVAS"
	JoinRoom    Type = "JOIN_ROOM"
	LeaveRoom   Type = "LEAVE_ROOM"
)

// Stored reports whether events of this type ever appear in a Room's
// Event Log (spec: only drawing/clear events are stored; JOIN_ROOM and
// LEAVE_ROOM are control events handled by the coordinator directly).
func (t Type) Stored() bool {
	switch t {
	case DrawLine, DrawPath, Erase, ClearCanvas:
		return true
	default:
		return false
	}
}

// Point is a single (x, y) coordinate pair.
type Point [2]float64

// Region is the rectangle payload of an ERASE event.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Event is a validated, and once accepted, sequenced whiteboard
// action. The zero Sequence value means "not yet accepted" and is
// omitted on the wire.
type Event struct {
	Type      Type   `json:"type"`
	UserID    string `json:"userId"`
	RoomID    string `json:"roomId"`
	Timestamp int64  `json:"timestamp"`
	Sequence  uint64 `json:"sequence,omitempty"`

	// Points carries the DRAW_LINE / DRAW_PATH stroke. The distinction
	// between the two types is a client rendering hint only (spec.md
	// §3) and does not affect storage, so both are normalized here.
	Points      []Point `json:"points,omitempty"`
	Color       string  `json:"color,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	// Region carries the ERASE rectangle.
	Region *Region `json:"region,omitempty"`
}

// WithSequence returns a copy of e with Sequence set, leaving e
// unmodified. The Event Log stores only the returned copy.
func (e Event) WithSequence(seq uint64) Event {
	e.Sequence = seq
	return e
}
