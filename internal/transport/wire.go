package transport

import (
	"github.com/whiteboard/backend/internal/event"
)

// inboundFrame mirrors the client->server envelope (spec.md §6.1): a
// JOIN_ROOM/LEAVE_ROOM control frame or a whiteboard event. roomId and
// timestamp are never trusted for drawing events — the Session
// overwrites them before validation. For JOIN_ROOM, roomId is the one
// field that IS trusted from the client (there is no session-scoped
// room yet to substitute it with). LEAVE_ROOM does not read roomId: it
// leaves whatever room the session is currently in.
type inboundFrame struct {
	Type   event.Type `json:"type"`
	UserID string     `json:"userId"`
	RoomID string     `json:"roomId"`
}

// serverFrame is the discriminated server->client envelope (spec.md
// §6.1). Only one of the payload fields is populated, matching the
// "type" tag.
type serverFrame struct {
	Type string `json:"type"`

	// CONNECTED
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message,omitempty"`

	// ROOM_JOINED
	RoomID          string        `json:"roomId,omitempty"`
	UserCount       int           `json:"userCount,omitempty"`
	State           []event.Event `json:"state,omitempty"`
	StateEventCount int           `json:"stateEventCount,omitempty"`

	// EVENT
	Event *event.Event `json:"event,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

func connectedFrame(sessionID string) serverFrame {
	return serverFrame{Type: "CONNECTED", SessionID: sessionID, Message: "connected"}
}

func roomJoinedFrame(roomID string, userCount int, state []event.Event) serverFrame {
	return serverFrame{
		Type:            "ROOM_JOINED",
		RoomID:          roomID,
		UserCount:       userCount,
		State:           state,
		StateEventCount: len(state),
	}
}

func eventFrame(e event.Event) serverFrame {
	return serverFrame{Type: "EVENT", Event: &e}
}

func errorFrame(message string) serverFrame {
	return serverFrame{Type: "ERROR", Error: message}
}
