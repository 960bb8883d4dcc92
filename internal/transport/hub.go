package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/whiteboard/backend/internal/bus"
	"github.com/whiteboard/backend/internal/config"
	"github.com/whiteboard/backend/internal/event"
	"github.com/whiteboard/backend/internal/logging"
	"github.com/whiteboard/backend/internal/membership"
	"github.com/whiteboard/backend/internal/metrics"
	"github.com/whiteboard/backend/internal/ratelimit"
	"github.com/whiteboard/backend/internal/room"
	"github.com/whiteboard/backend/internal/validate"
)

// defaultEmptyGracePeriod mirrors the teacher's room-cleanup debounce,
// repurposed here as a soft "room went empty" signal only — it never
// drops the room from the Registry (SPEC_FULL.md Open Question #2).
const defaultEmptyGracePeriod = 5 * time.Second

var tracer = otel.Tracer("github.com/whiteboard/backend/internal/transport")

// Hub ties the Room Registry, Membership Table, and validation limits
// together, and owns the WebSocket upgrade path (spec.md §4.H/§4.I,
// formerly the teacher's ServeWs).
type Hub struct {
	registry  *room.Registry
	members   *membership.Table
	sessions  *sessionRegistry
	limits    validate.Limits
	presence  *bus.Service           // optional, nil when REDIS_ENABLED=false
	rateLimit *ratelimit.RateLimiter // optional

	allowedOrigins []string

	maxEventSizeBytes int64

	heartbeatEnabled  bool
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	mu          sync.Mutex
	emptyTimers map[string]*time.Timer
	emptyGrace  time.Duration
}

// sessionRegistry maps session ids to their live *Session, so the
// fan-out can resolve the membership snapshot's session ids (plain
// strings, per spec.md §4.G) back into something it can write to.
type sessionRegistry struct {
	mu sync.RWMutex
	m  map[string]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{m: make(map[string]*Session)}
}

func (r *sessionRegistry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[s.ID] = s
}

func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}

func (r *sessionRegistry) get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[id]
	return s, ok
}

// NewHub constructs a Hub. presence and rateLimit may be nil. origins
// is the CheckOrigin allow-list for the upgrade handshake, typically
// built from auth.GetAllowedOriginsFromEnv by the caller.
func NewHub(registry *room.Registry, cfg *config.Config, presence *bus.Service, rateLimit *ratelimit.RateLimiter, origins []string) *Hub {
	return &Hub{
		registry:          registry,
		members:           membership.New(),
		sessions:          newSessionRegistry(),
		limits:            validate.Limits{MaxPointsPerEvent: cfg.MaxPointsPerEvent},
		presence:          presence,
		rateLimit:         rateLimit,
		allowedOrigins:    origins,
		maxEventSizeBytes: int64(cfg.MaxEventSizeBytes),
		heartbeatEnabled:  cfg.HeartbeatEnabled,
		heartbeatInterval: cfg.HeartbeatInterval,
		heartbeatTimeout:  cfg.HeartbeatTimeout,
		emptyTimers:       make(map[string]*time.Timer),
		emptyGrace:        defaultEmptyGracePeriod,
	}
}

var upgrader = func(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, a := range allowed {
				allowedURL, err := url.Parse(a)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any { return make([]byte, 4096) },
		},
	}
}

// ServeWs upgrades an HTTP request to a persistent bidirectional
// frame connection and starts the session's read/write pumps. There is
// no token check here — spec.md §1 places authentication out of
// scope for the wire protocol; userId is a client-asserted opaque
// string carried in each frame instead.
func (h *Hub) ServeWs(c *gin.Context) {
	if h.rateLimit != nil && !h.rateLimit.CheckWebSocketIP(c) {
		return
	}

	up := upgrader(h.allowedOrigins)
	conn, err := up.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "failed to upgrade connection", zap.Error(err))
		return
	}

	conn.SetReadLimit(h.maxEventSizeBytes)

	sess := newSession(conn, h)
	h.sessions.put(sess)
	metrics.IncConnection()

	sess.sendFrame(connectedFrame(sess.ID))

	go sess.writePump()
	go sess.readPump()
}

// dispatch decodes one inbound frame and routes it by type (spec.md
// §4.H step 3).
func (h *Hub) dispatch(sess *Session, data []byte) {
	var envelope inboundFrame
	if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
		metrics.WebsocketFrames.WithLabelValues("unknown", "invalid_frame").Inc()
		sess.sendFrame(errorFrame("Invalid message format"))
		return
	}

	switch envelope.Type {
	case event.JoinRoom:
		h.handleJoin(sess, envelope)
	case event.LeaveRoom:
		h.handleLeave(sess, envelope)
	case event.DrawLine, event.DrawPath, event.Erase, event.ClearCanvas:
		h.handleEvent(sess, data, envelope.Type)
	default:
		metrics.WebsocketFrames.WithLabelValues(string(envelope.Type), "unknown_type").Inc()
		sess.sendFrame(errorFrame("Unknown message type"))
	}
}

func (h *Hub) handleJoin(sess *Session, envelope inboundFrame) {
	if envelope.RoomID == "" {
		metrics.WebsocketFrames.WithLabelValues("JOIN_ROOM", "invalid_frame").Inc()
		sess.sendFrame(errorFrame("Invalid message format"))
		return
	}

	h.members.Join(envelope.RoomID, sess.ID)
	h.cancelEmptyTimer(envelope.RoomID)
	coord := h.registry.GetOrCreate(envelope.RoomID)

	members := h.members.MembersOf(envelope.RoomID)
	metrics.RoomMembers.WithLabelValues(envelope.RoomID).Set(float64(len(members)))

	if h.presence != nil {
		h.presence.PublishPresence(context.Background(), envelope.RoomID, sess.ID, "joined")
	}

	sess.sendFrame(roomJoinedFrame(envelope.RoomID, len(members), coord.State()))
	metrics.WebsocketFrames.WithLabelValues("JOIN_ROOM", "accepted").Inc()
}

func (h *Hub) handleLeave(sess *Session, envelope inboundFrame) {
	roomID, ok := h.members.RoomOf(sess.ID)
	if !ok {
		metrics.WebsocketFrames.WithLabelValues("LEAVE_ROOM", "not_in_room").Inc()
		sess.sendFrame(errorFrame("Not in a room"))
		return
	}

	h.members.Leave(roomID, sess.ID)
	h.onRoomMembershipChanged(roomID)

	if h.presence != nil {
		h.presence.PublishPresence(context.Background(), roomID, sess.ID, "left")
	}

	metrics.WebsocketFrames.WithLabelValues("LEAVE_ROOM", "accepted").Inc()
}

func (h *Hub) handleEvent(sess *Session, data []byte, evType event.Type) {
	roomID, ok := h.members.RoomOf(sess.ID)
	if !ok {
		metrics.WebsocketFrames.WithLabelValues(string(evType), "not_in_room").Inc()
		sess.sendFrame(errorFrame("Not in a room"))
		return
	}

	candidate, err := validate.Validate(data, roomID, time.Now(), h.limits)
	if err != nil {
		metrics.WebsocketFrames.WithLabelValues(string(evType), "invalid_event").Inc()
		sess.sendFrame(errorFrame("Invalid event"))
		return
	}

	_, span := tracer.Start(context.Background(), "room.Submit")
	coord := h.registry.GetOrCreate(roomID)
	stored, err := coord.Submit(candidate)
	span.SetAttributes(attribute.String("room.id", roomID), attribute.String("event.type", string(evType)))
	span.End()
	if err != nil {
		switch err {
		case room.ErrConflict:
			metrics.WebsocketFrames.WithLabelValues(string(evType), "conflict").Inc()
			sess.sendFrame(errorFrame("Event rejected due to conflict resolution"))
		case room.ErrSaturated:
			metrics.WebsocketFrames.WithLabelValues(string(evType), "saturated").Inc()
			sess.sendFrame(errorFrame("Room event log is full"))
		default:
			metrics.WebsocketFrames.WithLabelValues(string(evType), "error").Inc()
			sess.sendFrame(errorFrame("Internal error"))
		}
		return
	}

	metrics.WebsocketFrames.WithLabelValues(string(evType), "accepted").Inc()
	h.publish(roomID, stored)
}

// publish is the Broadcast Fan-out (spec.md §4.I): every current
// member of roomID receives the accepted event, including the
// submitter, so it learns its assigned sequence number.
func (h *Hub) publish(roomID string, e event.Event) {
	members := h.members.MembersOf(roomID)
	frame := eventFrame(e)
	data, err := json.Marshal(frame)
	if err != nil {
		logging.Error(nil, "failed to marshal event frame", zap.Error(err))
		return
	}

	for _, sessionID := range members {
		if sess, ok := h.sessions.get(sessionID); ok {
			sess.enqueue(frame.Type, data)
		}
	}

	metrics.BroadcastFanout.WithLabelValues(string(e.Type)).Observe(float64(len(members)))
}

// disconnect removes sess from membership on socket close (spec.md
// §4.H step 4) and releases its writePump: forceClose closes s.send,
// which is the only signal writePump's select loop waits on when
// heartbeats are disabled (the default) — without it, every
// disconnect would leak that goroutine forever.
func (h *Hub) disconnect(sess *Session) {
	roomID, ok := h.members.RoomOf(sess.ID)
	h.members.Disconnect(sess.ID)
	h.sessions.remove(sess.ID)
	sess.forceClose()

	if ok {
		h.onRoomMembershipChanged(roomID)
		if h.presence != nil {
			h.presence.PublishPresence(context.Background(), roomID, sess.ID, "left")
		}
	}
}

// onRoomMembershipChanged updates the RoomMembers gauge and, if the
// room went empty, starts (or leaves running) the soft empty-grace
// timer. The timer never calls registry.Drop — that remains an
// explicit administrative action (SPEC_FULL.md Open Question #2).
func (h *Hub) onRoomMembershipChanged(roomID string) {
	members := h.members.MembersOf(roomID)
	metrics.RoomMembers.WithLabelValues(roomID).Set(float64(len(members)))

	if len(members) == 0 {
		h.scheduleEmptyTimer(roomID)
	} else {
		h.cancelEmptyTimer(roomID)
	}
}

func (h *Hub) scheduleEmptyTimer(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.emptyTimers[roomID]; exists {
		return
	}
	h.emptyTimers[roomID] = time.AfterFunc(h.emptyGrace, func() {
		h.mu.Lock()
		delete(h.emptyTimers, roomID)
		h.mu.Unlock()
		logging.Info(context.Background(), "room has been empty past grace period", zap.String("roomId", roomID))
	})
}

func (h *Hub) cancelEmptyTimer(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, exists := h.emptyTimers[roomID]; exists {
		t.Stop()
		delete(h.emptyTimers, roomID)
	}
}
