package validate

import (
	"testing"
	"time"

	"github.com/whiteboard/backend/internal/event"
)

var fixedNow = time.UnixMilli(1_700_000_000_000)

func TestValidate_DrawLine_Valid(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"#FF00AA","strokeWidth":2.5}`)
	e, err := Validate(raw, "room-1", fixedNow, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Type != event.DrawLine || e.RoomID != "room-1" || len(e.Points) != 2 {
		t.Fatalf("unexpected event: %+v", e)
	}
	if e.Timestamp != fixedNow.UnixMilli() {
		t.Fatalf("expected server-stamped timestamp, got %d", e.Timestamp)
	}
}

func TestValidate_DrawPath_UsesPathField(t *testing.T) {
	raw := []byte(`{"type":"DRAW_PATH","userId":"u1","path":[[0,0],[1,1],[2,2]],"color":"#123456","strokeWidth":1}`)
	e, err := Validate(raw, "room-1", fixedNow, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Points) != 3 {
		t.Fatalf("expected 3 points from path field, got %d", len(e.Points))
	}
}

func TestValidate_ServerOverwritesRoomIDAndTimestamp(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","roomId":"attacker-room","timestamp":1,"points":[[0,0],[1,1]],"color":"#000000","strokeWidth":1}`)
	e, err := Validate(raw, "real-room", fixedNow, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.RoomID != "real-room" {
		t.Fatalf("expected server roomId to win, got %q", e.RoomID)
	}
	if e.Timestamp != fixedNow.UnixMilli() {
		t.Fatalf("expected server timestamp to win, got %d", e.Timestamp)
	}
}

func TestValidate_InvalidColor(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"red","strokeWidth":1}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestValidate_TooFewPoints(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","points":[[0,0]],"color":"#000000","strokeWidth":1}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
}

func TestValidate_TooManyPoints(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1],[2,2]],"color":"#000000","strokeWidth":1}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{MaxPointsPerEvent: 2}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for exceeding MaxPointsPerEvent, got %v", err)
	}
}

func TestValidate_NonFinitePoint(t *testing.T) {
	raw := []byte(`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1e400,1]],"color":"#000000","strokeWidth":1}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for infinite coordinate, got %v", err)
	}
}

func TestValidate_StrokeWidthOutOfRange(t *testing.T) {
	cases := []string{
		`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"#000000","strokeWidth":0}`,
		`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"#000000","strokeWidth":100.1}`,
		`{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"#000000","strokeWidth":-1}`,
	}
	for _, c := range cases {
		if _, err := Validate([]byte(c), "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
			t.Fatalf("expected ErrInvalidEvent for %s, got %v", c, err)
		}
	}
}

func TestValidate_Erase_Valid(t *testing.T) {
	raw := []byte(`{"type":"ERASE","userId":"u1","region":{"x":1,"y":2,"width":3,"height":4}}`)
	e, err := Validate(raw, "room-1", fixedNow, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Region == nil || e.Region.Width != 3 || e.Region.Height != 4 {
		t.Fatalf("unexpected region: %+v", e.Region)
	}
}

func TestValidate_Erase_ZeroDimension(t *testing.T) {
	raw := []byte(`{"type":"ERASE","userId":"u1","region":{"x":1,"y":2,"width":0,"height":4}}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for zero width, got %v", err)
	}
}

func TestValidate_Erase_MissingRegion(t *testing.T) {
	raw := []byte(`{"type":"ERASE","userId":"u1"}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for missing region, got %v", err)
	}
}

func TestValidate_ClearCanvas_HeaderOnly(t *testing.T) {
	raw := []byte(`{"type":"CLEAR_CANVAS","userId":"u1"}`)
	e, err := Validate(raw, "room-1", fixedNow, Limits{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Type != event.ClearCanvas {
		t.Fatalf("unexpected type: %s", e.Type)
	}
}

func TestValidate_MissingUserID(t *testing.T) {
	raw := []byte(`{"type":"CLEAR_CANVAS"}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for missing userId, got %v", err)
	}
}

func TestValidate_UnknownType(t *testing.T) {
	raw := []byte(`{"type":"FOO","userId":"u1"}`)
	if _, err := Validate(raw, "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for unknown type, got %v", err)
	}
}

func TestValidate_MalformedJSON(t *testing.T) {
	if _, err := Validate([]byte(`not json`), "room-1", fixedNow, Limits{}); err != ErrInvalidEvent {
		t.Fatalf("expected ErrInvalidEvent for malformed JSON, got %v", err)
	}
}
