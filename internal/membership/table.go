// Package membership implements the Membership Table (spec.md §4.G):
// the bidirectional mapping between rooms and the sessions currently
// joined to them.
package membership

import (
	"sync"

	"k8s.io/utils/set"
)

// Table tracks which sessions belong to which room. A session belongs
// to at most one room at a time; Join implicitly leaves any prior
// room so callers never need to call Leave first.
type Table struct {
	mu      sync.RWMutex
	rooms   map[string]set.Set[string]
	session map[string]string
}

// New returns an empty Table.
func New() *Table {
	return &Table{
		rooms:   make(map[string]set.Set[string]),
		session: make(map[string]string),
	}
}

// Join adds sessionID to roomID, first leaving whatever room it was
// previously in, if any.
func (t *Table) Join(roomID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.session[sessionID]; ok {
		if prev == roomID {
			return
		}
		t.removeFromRoom(prev, sessionID)
	}

	members, ok := t.rooms[roomID]
	if !ok {
		members = set.New[string]()
		t.rooms[roomID] = members
	}
	members.Insert(sessionID)
	t.session[sessionID] = roomID
}

// Leave removes sessionID from roomID. It is a no-op if the session is
// not currently a member of that room.
func (t *Table) Leave(roomID, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session[sessionID] != roomID {
		return
	}
	t.removeFromRoom(roomID, sessionID)
	delete(t.session, sessionID)
}

// Disconnect removes sessionID from whatever room it belongs to, if
// any. Callers use this on socket close instead of looking up the
// room first.
func (t *Table) Disconnect(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	roomID, ok := t.session[sessionID]
	if !ok {
		return
	}
	t.removeFromRoom(roomID, sessionID)
	delete(t.session, sessionID)
}

// removeFromRoom drops sessionID from roomID's member set and prunes
// the room entry entirely once it becomes empty. Callers must hold
// t.mu.
func (t *Table) removeFromRoom(roomID, sessionID string) {
	members, ok := t.rooms[roomID]
	if !ok {
		return
	}
	members.Delete(sessionID)
	if members.Len() == 0 {
		delete(t.rooms, roomID)
	}
}

// MembersOf returns a snapshot of the session ids currently joined to
// roomID. The returned slice is independent of the Table's internal
// state.
func (t *Table) MembersOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	return members.UnsortedList()
}

// RoomOf returns the room sessionID currently belongs to, and whether
// it belongs to any room at all.
func (t *Table) RoomOf(sessionID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	roomID, ok := t.session[sessionID]
	return roomID, ok
}

// RoomCount returns the number of rooms with at least one member.
func (t *Table) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}
