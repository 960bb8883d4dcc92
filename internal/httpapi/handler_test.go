package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whiteboard/backend/internal/event"
	"github.com/whiteboard/backend/internal/room"
	"github.com/whiteboard/backend/internal/validate"
)

func newTestHandler() (*Handler, *room.Registry) {
	reg := room.NewRegistry(0, 1000*time.Millisecond)
	return NewHandler(reg, validate.Limits{MaxPointsPerEvent: 1000}), reg
}

func newTestContext(method, target string, body []byte, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Params = params
	return c, w
}

func TestListRooms_Empty(t *testing.T) {
	h, _ := newTestHandler()
	c, w := newTestContext(http.MethodGet, "/rooms", nil, nil)

	h.ListRooms(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"count":0`)
}

func TestRoomState_NotFound(t *testing.T) {
	h, _ := newTestHandler()
	c, w := newTestContext(http.MethodGet, "/rooms/ghost/state", nil, gin.Params{{Key: "roomId", Value: "ghost"}})

	h.RoomState(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomState_ReturnsAccumulatedEvents(t *testing.T) {
	h, reg := newTestHandler()
	coord := reg.GetOrCreate("r1")
	_, err := coord.Submit(testDraw())
	require.NoError(t, err)

	c, w := newTestContext(http.MethodGet, "/rooms/r1/state", nil, gin.Params{{Key: "roomId", Value: "r1"}})
	h.RoomState(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eventCount":1`)
}

func TestDeleteRoom_ResetsLog(t *testing.T) {
	h, reg := newTestHandler()
	coord := reg.GetOrCreate("r1")
	_, err := coord.Submit(testDraw())
	require.NoError(t, err)

	c, w := newTestContext(http.MethodDelete, "/rooms/r1", nil, gin.Params{{Key: "roomId", Value: "r1"}})
	h.DeleteRoom(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, coord.Len())
}

func TestDeleteRoom_NotFound(t *testing.T) {
	h, _ := newTestHandler()
	c, w := newTestContext(http.MethodDelete, "/rooms/ghost", nil, gin.Params{{Key: "roomId", Value: "ghost"}})

	h.DeleteRoom(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEvents_Since(t *testing.T) {
	h, reg := newTestHandler()
	coord := reg.GetOrCreate("r1")
	_, _ = coord.Submit(testDraw())
	_, _ = coord.Submit(testDraw())

	c, w := newTestContext(http.MethodGet, "/events/r1?after=1", nil, gin.Params{{Key: "roomId", Value: "r1"}})
	c.Request.URL.RawQuery = "after=1"
	h.Events(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"eventCount":1`)
}

func TestEvents_InvalidAfterParam(t *testing.T) {
	h, reg := newTestHandler()
	reg.GetOrCreate("r1")

	c, w := newTestContext(http.MethodGet, "/events/r1", nil, gin.Params{{Key: "roomId", Value: "r1"}})
	c.Request.URL.RawQuery = "after=not-a-number"
	h.Events(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitEvent_AcceptsAndReturnsSequencedEvent(t *testing.T) {
	h, _ := newTestHandler()
	body := []byte(`{"roomId":"r1","event":{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"#000000","strokeWidth":1}}`)
	c, w := newTestContext(http.MethodPost, "/events", body, nil)

	h.SubmitEvent(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sequence":1`)
}

func TestSubmitEvent_InvalidEventReturns400(t *testing.T) {
	h, _ := newTestHandler()
	body := []byte(`{"roomId":"r1","event":{"type":"DRAW_LINE","userId":"u1","points":[[0,0],[1,1]],"color":"red","strokeWidth":1}}`)
	c, w := newTestContext(http.MethodPost, "/events", body, nil)

	h.SubmitEvent(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitEvent_MissingRoomIDReturns400(t *testing.T) {
	h, _ := newTestHandler()
	body := []byte(`{"event":{"type":"DRAW_LINE","userId":"u1"}}`)
	c, w := newTestContext(http.MethodPost, "/events", body, nil)

	h.SubmitEvent(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func testDraw() event.Event {
	return event.Event{
		Type:        event.DrawLine,
		UserID:      "u1",
		RoomID:      "r1",
		Timestamp:   time.Now().UnixMilli(),
		Points:      []event.Point{{0, 0}, {1, 1}},
		Color:       "#000000",
		StrokeWidth: 1,
	}
}
