package room

import (
	"sync"
	"time"

	"github.com/whiteboard/backend/internal/metrics"
)

// Registry is a concurrent mapping from room id to Coordinator. The
// key set of rooms is the authoritative "active rooms" set — there is
// no separate liveness flag (spec.md §4.F).
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Coordinator
	maxEvents int
	cooldown  time.Duration
}

// NewRegistry creates an empty registry. maxEvents and cooldown are
// applied to every Coordinator it lazily creates.
func NewRegistry(maxEvents int, cooldown time.Duration) *Registry {
	return &Registry{
		rooms:     make(map[string]*Coordinator),
		maxEvents: maxEvents,
		cooldown:  cooldown,
	}
}

// GetOrCreate returns the existing Coordinator for roomID, or
// atomically installs and returns a fresh one.
func (r *Registry) GetOrCreate(roomID string) *Coordinator {
	r.mu.RLock()
	if c, ok := r.rooms[roomID]; ok {
		r.mu.RUnlock()
		return c
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.rooms[roomID]; ok {
		return c
	}

	c := NewCoordinator(roomID, r.maxEvents, r.cooldown)
	r.rooms[roomID] = c
	metrics.ActiveRooms.Inc()
	return c
}

// Get returns the Coordinator for roomID, or nil if the room does not
// exist.
func (r *Registry) Get(roomID string) *Coordinator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rooms[roomID]
}

// Drop removes roomID from the registry, allowing its Coordinator to
// be garbage collected. It does not clear the Coordinator's state
// first — callers that want an audit-visible wipe should call
// Coordinator.Reset before Drop.
func (r *Registry) Drop(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[roomID]; ok {
		delete(r.rooms, roomID)
		metrics.ActiveRooms.Dec()
		metrics.RoomLogSize.DeleteLabelValues(roomID)
	}
}

// List returns a snapshot of currently active room ids.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	return ids
}
