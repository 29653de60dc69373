package core

// Presence event type discriminators carried in the "type" field of each
// server-push payload and outbound post.
const (
	EventInit      = "presence:init"
	EventJoin      = "presence:join"
	EventLeave     = "presence:leave"
	EventCursor    = "cursor:move"
	EventSelection = "selection:change"
	EventCanvasOp  = "canvas:op"
	EventHeartbeat = "heartbeat"
)

// PresenceEvent is the JSON envelope shared by the presence stream and its
// sibling outbound endpoints. Only the fields relevant to a given Type are
// populated.
type PresenceEvent struct {
	Type       string     `json:"type"`
	SessionKey string     `json:"sessionKey,omitempty"`
	Role       Role       `json:"role,omitempty"`
	Roster     []Session  `json:"roster,omitempty"`
	Session    *Session   `json:"session,omitempty"`
	Cursor     *Cursor    `json:"cursor,omitempty"`
	ObjectID   string     `json:"objectId,omitempty"`
	Op         *Operation `json:"op,omitempty"`
}
