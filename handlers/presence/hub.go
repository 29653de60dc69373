package presence

import (
	"sync"

	"flowsmartly-studio/core"

	"github.com/sirupsen/logrus"
)

// subscriberBuffer is the per-connection event queue depth. A subscriber that
// cannot keep up has events dropped rather than blocking the room.
const subscriberBuffer = 64

type subscriber struct {
	session core.Session
	events  chan core.PresenceEvent
}

// room holds the live roster of one design.
type room struct {
	mu   sync.RWMutex
	subs map[string]*subscriber // keyed by session key
}

// Hub is the server side of the collaboration protocol: a registry of rooms,
// one per open design, fanning presence events out to subscribed sessions.
// It keeps no canvas state; operations pass through untouched and the scene
// itself is last-write-wins on the clients.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]*room)}
}

// room looks a room up without creating it; only Join materializes rooms, so
// stray posts after a room is collected cannot resurrect it empty.
func (h *Hub) room(designID string) (*room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rm, ok := h.rooms[designID]
	return rm, ok
}

// RoomCounts reports the subscriber count per active design, for diagnostics.
func (h *Hub) RoomCounts() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	counts := make(map[string]int, len(h.rooms))
	for id, rm := range h.rooms {
		rm.mu.RLock()
		if n := len(rm.subs); n > 0 {
			counts[id] = n
		}
		rm.mu.RUnlock()
	}
	return counts
}

// Join registers a session in a design's room, announces it to the others
// and returns the subscriber's event queue plus the roster as it was before
// the join (the joiner is not in it).
func (h *Hub) Join(designID string, session core.Session) (<-chan core.PresenceEvent, []core.Session) {
	sub := &subscriber{
		session: session,
		events:  make(chan core.PresenceEvent, subscriberBuffer),
	}

	// The hub lock is held across the insert so a concurrent Leave cannot
	// garbage-collect the room between the lookup and the registration.
	h.mu.Lock()
	rm, ok := h.rooms[designID]
	if !ok {
		rm = &room{subs: make(map[string]*subscriber)}
		h.rooms[designID] = rm
	}
	rm.mu.Lock()
	roster := rm.rosterLocked()
	rm.subs[session.Key] = sub
	rm.mu.Unlock()
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"design":  designID,
		"session": session.Key,
		"user":    session.UserID,
	}).Info("presence: session joined")

	h.fanOut(designID, session.Key, core.PresenceEvent{
		Type:    core.EventJoin,
		Session: &session,
	})
	return sub.events, roster
}

// Leave removes a session and announces its departure. Empty rooms are
// garbage-collected.
func (h *Hub) Leave(designID, sessionKey string) {
	rm, ok := h.room(designID)
	if !ok {
		return
	}

	rm.mu.Lock()
	sub, ok := rm.subs[sessionKey]
	delete(rm.subs, sessionKey)
	empty := len(rm.subs) == 0
	rm.mu.Unlock()
	if !ok {
		return
	}
	close(sub.events)

	logrus.WithFields(logrus.Fields{
		"design":  designID,
		"session": sessionKey,
	}).Info("presence: session left")

	if empty && h.collect(designID, rm) {
		return
	}
	h.fanOut(designID, sessionKey, core.PresenceEvent{
		Type:       core.EventLeave,
		SessionKey: sessionKey,
	})
}

// collect removes a drained room, re-checking under the hub lock: a session
// that joined since the last leave keeps the room alive.
func (h *Hub) collect(designID string, rm *room) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	cur, ok := h.rooms[designID]
	if !ok || cur != rm {
		return true
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.subs) > 0 {
		return false
	}
	delete(h.rooms, designID)
	return true
}

// Session returns a room's session by key.
func (h *Hub) Session(designID, sessionKey string) (core.Session, bool) {
	rm, ok := h.room(designID)
	if !ok {
		return core.Session{}, false
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	sub, ok := rm.subs[sessionKey]
	if !ok {
		return core.Session{}, false
	}
	return sub.session, true
}

// UpdateCursor records a session's cursor and fans the move out.
func (h *Hub) UpdateCursor(designID, sessionKey string, cursor core.Cursor) {
	rm, ok := h.room(designID)
	if !ok {
		return
	}
	rm.mu.Lock()
	sub, ok := rm.subs[sessionKey]
	if ok {
		sub.session.Cursor = cursor
	}
	rm.mu.Unlock()
	if !ok {
		return
	}
	h.fanOut(designID, sessionKey, core.PresenceEvent{
		Type:       core.EventCursor,
		SessionKey: sessionKey,
		Cursor:     &cursor,
	})
}

// UpdateSelection records a session's selected object (the soft lock) and
// fans the change out.
func (h *Hub) UpdateSelection(designID, sessionKey, objectID string) {
	rm, ok := h.room(designID)
	if !ok {
		return
	}
	rm.mu.Lock()
	sub, ok := rm.subs[sessionKey]
	if ok {
		sub.session.SelectedID = objectID
	}
	rm.mu.Unlock()
	if !ok {
		return
	}
	h.fanOut(designID, sessionKey, core.PresenceEvent{
		Type:       core.EventSelection,
		SessionKey: sessionKey,
		ObjectID:   objectID,
	})
}

// Broadcast fans a canvas operation out to every session except its origin.
func (h *Hub) Broadcast(designID string, op core.Operation) {
	h.fanOut(designID, op.SessionKey, core.PresenceEvent{
		Type:       core.EventCanvasOp,
		SessionKey: op.SessionKey,
		Op:         &op,
	})
}

func (h *Hub) fanOut(designID, originKey string, ev core.PresenceEvent) {
	rm, ok := h.room(designID)
	if !ok {
		return
	}
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	for key, sub := range rm.subs {
		if key == originKey {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			logrus.WithFields(logrus.Fields{
				"design":  designID,
				"session": key,
			}).Warn("presence: slow subscriber, event dropped")
		}
	}
}

func (rm *room) rosterLocked() []core.Session {
	roster := make([]core.Session, 0, len(rm.subs))
	for _, sub := range rm.subs {
		roster = append(roster, sub.session)
	}
	return roster
}
