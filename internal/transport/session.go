// Package transport implements the Session (spec.md §4.H) and
// Broadcast Fan-out (§4.I): the WebSocket-facing half of the room
// state machine. A Session wraps one socket, decodes inbound JSON
// frames, dispatches them into the room pipeline, and serializes its
// own outbound sends through a bounded queue so a slow reader cannot
// stall other sessions.
package transport

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/whiteboard/backend/internal/logging"
	"github.com/whiteboard/backend/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 256
)

// wsConnection is the subset of *websocket.Conn the Session depends
// on, narrowed for testability.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	SetReadLimit(limit int64)
}

// Session is the server's view of one connected client for the
// lifetime of its socket (spec.md §3 Session).
type Session struct {
	ID   string
	conn wsConnection
	send chan []byte
	hub  *Hub

	// closeMu guards closed/send so enqueue and forceClose never race:
	// a concurrent send on s.send and a close of s.send from another
	// goroutine is a panic, not a benign drop, so both operations take
	// closeMu rather than relying on sync.Once around just the close.
	closeMu sync.Mutex
	closed  bool
}

func newSession(conn wsConnection, hub *Hub) *Session {
	return &Session{
		ID:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		hub:  hub,
	}
}

// armHeartbeat wires the optional 30s ping / 10s pong liveness check
// (spec.md §5, SPEC_FULL.md Open Question #3): disabled unless the
// Hub was configured with HeartbeatEnabled. A pong handler bumps the
// read deadline each time the client answers a ping; a client that
// stops answering gets its connection closed by the next read
// timeout in readPump.
func (s *Session) armHeartbeat() {
	if s.hub == nil || !s.hub.heartbeatEnabled {
		return
	}
	timeout := s.hub.heartbeatTimeout
	s.conn.SetReadDeadline(time.Now().Add(s.hub.heartbeatInterval + timeout))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(s.hub.heartbeatInterval + timeout))
		return nil
	})
}

// enqueue pushes an outbound frame onto the session's send queue. If
// the queue is full the session is too slow to keep up and is
// disconnected rather than letting the sender block (spec.md §5
// backpressure).
func (s *Session) enqueue(frameType string, data []byte) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.send <- data:
	default:
		metrics.BroadcastDropped.WithLabelValues(frameType).Inc()
		logging.Warn(nil, "session send buffer full, disconnecting", zap.String("sessionId", s.ID))
		s.closeLocked()
	}
}

// sendFrame marshals and enqueues a server frame. A send to a session
// whose socket already closed is a silent no-op — frame is dropped.
func (s *Session) sendFrame(f serverFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		logging.Error(nil, "failed to marshal server frame", zap.String("type", f.Type))
		return
	}
	s.enqueue(f.Type, data)
}

// forceClose closes the send queue, waking writePump. Safe to call
// concurrently with enqueue and safe to call more than once.
func (s *Session) forceClose() {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closeLocked()
}

// closeLocked closes s.send. Caller must hold closeMu.
func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// readPump reads and dispatches inbound frames until the socket
// closes or errors. Runs in its own goroutine; the Session is removed
// from membership on exit.
func (s *Session) readPump() {
	defer func() {
		s.hub.disconnect(s)
		s.conn.Close()
		metrics.DecConnection()
	}()

	s.armHeartbeat()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		s.hub.dispatch(s, data)
	}
}

// writePump drains the send queue onto the socket. Runs in its own
// goroutine; exits (and closes the socket) when the queue is closed
// or a write fails.
func (s *Session) writePump() {
	defer s.conn.Close()

	var ticker *time.Ticker
	var tick <-chan time.Time
	if s.hub != nil && s.hub.heartbeatEnabled {
		ticker = time.NewTicker(s.hub.heartbeatInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-tick:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
