// Package validate implements the pure Event Validator (spec.md
// §4.B): structural and semantic validation of an untrusted inbound
// frame, producing a typed event.Event on success.
package validate

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"time"

	"github.com/whiteboard/backend/internal/event"
)

// ErrInvalidEvent is returned for any frame that fails structural or
// semantic validation. Nothing is stored and nothing is broadcast.
var ErrInvalidEvent = errors.New("invalid event")

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// Limits bounds the sizes validate will accept, sourced from
// config.Config (spec.md §6.3).
type Limits struct {
	MaxPointsPerEvent int
}

type wireFrame struct {
	Type        string      `json:"type"`
	UserID      string      `json:"userId"`
	Points      [][]float64 `json:"points"`
	Path        [][]float64 `json:"path"`
	Color       string      `json:"color"`
	StrokeWidth float64     `json:"strokeWidth"`
	Region      *wireRegion `json:"region"`
}

type wireRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate decodes and validates a drawing/clear frame received from
// a session already known to be in a room. roomID and now are the
// server-authoritative values: per spec.md §4.B rule 1, the client's
// roomId and timestamp are never trusted for these event types — the
// caller must supply the session's current room and the server clock
// before calling Validate, which never reads either from raw.
func Validate(data []byte, roomID string, now time.Time, limits Limits) (event.Event, error) {
	var f wireFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return event.Event{}, ErrInvalidEvent
	}
	if f.UserID == "" || roomID == "" {
		return event.Event{}, ErrInvalidEvent
	}

	typ := event.Type(f.Type)
	base := event.Event{
		Type:      typ,
		UserID:    f.UserID,
		RoomID:    roomID,
		Timestamp: now.UnixMilli(),
	}

	switch typ {
	case event.DrawLine, event.DrawPath:
		pts := f.Points
		if typ == event.DrawPath {
			pts = f.Path
		}
		points, err := validatePoints(pts, limits.MaxPointsPerEvent)
		if err != nil {
			return event.Event{}, err
		}
		if !colorPattern.MatchString(f.Color) {
			return event.Event{}, ErrInvalidEvent
		}
		if !finite(f.StrokeWidth) || f.StrokeWidth <= 0 || f.StrokeWidth > 100 {
			return event.Event{}, ErrInvalidEvent
		}
		base.Points = points
		base.Color = f.Color
		base.StrokeWidth = f.StrokeWidth
		return base, nil

	case event.Erase:
		if f.Region == nil {
			return event.Event{}, ErrInvalidEvent
		}
		r := f.Region
		if !finite(r.X) || !finite(r.Y) || !finite(r.Width) || !finite(r.Height) {
			return event.Event{}, ErrInvalidEvent
		}
		if r.Width <= 0 || r.Height <= 0 {
			return event.Event{}, ErrInvalidEvent
		}
		base.Region = &event.Region{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
		return base, nil

	case event.ClearCanvas:
		return base, nil

	default:
		return event.Event{}, ErrInvalidEvent
	}
}

func validatePoints(raw [][]float64, maxPoints int) ([]event.Point, error) {
	if len(raw) < 2 {
		return nil, ErrInvalidEvent
	}
	if maxPoints > 0 && len(raw) > maxPoints {
		return nil, ErrInvalidEvent
	}
	points := make([]event.Point, len(raw))
	for i, p := range raw {
		if len(p) != 2 {
			return nil, ErrInvalidEvent
		}
		if !finite(p[0]) || !finite(p[1]) {
			return nil, ErrInvalidEvent
		}
		points[i] = event.Point{p[0], p[1]}
	}
	return points, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
