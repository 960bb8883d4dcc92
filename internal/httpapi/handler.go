// Package httpapi implements the administrative HTTP surface (spec.md
// §6.2): thin adapters over the Room Registry/Coordinator's public
// operations. It never duplicates room state — every handler routes
// through the same Registry the WebSocket Hub uses, so an event
// submitted here is immediately visible to connected sessions and
// vice versa (spec.md §9 flags a split-state bug in the source; this
// package is the fix: exactly one Registry, injected here and into
// the Hub).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/whiteboard/backend/internal/event"
	"github.com/whiteboard/backend/internal/logging"
	"github.com/whiteboard/backend/internal/room"
	"github.com/whiteboard/backend/internal/validate"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/whiteboard/backend/internal/httpapi")

// Handler adapts the Room Registry onto gin routes.
type Handler struct {
	registry *room.Registry
	limits   validate.Limits
}

// NewHandler constructs a Handler backed by registry.
func NewHandler(registry *room.Registry, limits validate.Limits) *Handler {
	return &Handler{registry: registry, limits: limits}
}

// Register wires all administrative routes onto the given group.
func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.ListRooms)
	r.GET("/rooms/:roomId/state", h.RoomState)
	r.DELETE("/rooms/:roomId", h.DeleteRoom)
	r.GET("/events/:roomId", h.Events)
	r.POST("/events", h.SubmitEvent)
}

// ListRooms handles GET /rooms.
func (h *Handler) ListRooms(c *gin.Context) {
	rooms := h.registry.List()
	c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
}

// RoomState handles GET /rooms/:roomId/state.
func (h *Handler) RoomState(c *gin.Context) {
	roomID := c.Param("roomId")
	coord := h.registry.Get(roomID)
	if coord == nil {
		c.JSON(http.StatusNotFound, gin.H{"roomId": roomID, "exists": false})
		return
	}

	events := coord.State()
	c.JSON(http.StatusOK, gin.H{
		"roomId":     roomID,
		"events":     events,
		"eventCount": len(events),
		"exists":     true,
	})
}

// DeleteRoom handles DELETE /rooms/:roomId. Clears the room's log and
// sequence counter; the room remains registered so a subsequent join
// starts a fresh, empty history rather than silently recreating a
// room the caller just asked to be wiped.
func (h *Handler) DeleteRoom(c *gin.Context) {
	roomID := c.Param("roomId")
	coord := h.registry.Get(roomID)
	if coord == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	coord.Reset()
	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "reset": true})
}

// Events handles GET /events/:roomId[?after=N].
func (h *Handler) Events(c *gin.Context) {
	roomID := c.Param("roomId")
	coord := h.registry.Get(roomID)
	if coord == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}

	var events []event.Event
	if after := c.Query("after"); after != "" {
		seq, err := parseSeq(after)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'after' parameter"})
			return
		}
		events = coord.StateSince(seq)
	} else {
		events = coord.State()
	}

	c.JSON(http.StatusOK, gin.H{"roomId": roomID, "events": events, "eventCount": len(events)})
}

// SubmitEvent handles POST /events. roomId and timestamp are
// server-overwritten identically to the WebSocket path — any "roomId"
// or "timestamp" inside the nested event is ignored; the stored event
// carries the request's top-level "roomId" and the server clock
// (spec.md §4.B rule 1).
func (h *Handler) SubmitEvent(c *gin.Context) {
	var req struct {
		RoomID string         `json:"roomId"`
		Event  map[string]any `json:"event"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" || req.Event == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	payload, err := marshalEventPayload(req.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}

	candidate, err := validate.Validate(payload, req.RoomID, time.Now(), h.limits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event"})
		return
	}

	_, span := tracer.Start(c.Request.Context(), "room.Submit")
	coord := h.registry.GetOrCreate(req.RoomID)
	stored, err := coord.Submit(candidate)
	span.SetAttributes(attribute.String("room.id", req.RoomID), attribute.String("event.type", string(candidate.Type)))
	span.End()
	if err != nil {
		switch err {
		case room.ErrConflict:
			c.JSON(http.StatusBadRequest, gin.H{"error": "event rejected due to conflict resolution"})
		case room.ErrSaturated:
			c.JSON(http.StatusBadRequest, gin.H{"error": "room event log is full"})
		default:
			logging.Error(c.Request.Context(), "unexpected error submitting event", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, stored)
}

func marshalEventPayload(fields map[string]any) ([]byte, error) {
	return json.Marshal(fields)
}

func parseSeq(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
