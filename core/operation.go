package core

import "encoding/json"

// OpKind discriminates broadcastable canvas operations.
type OpKind string

const (
	OpObjectAdded    OpKind = "object:added"
	OpObjectModified OpKind = "object:modified"
	OpObjectRemoved  OpKind = "object:removed"
	OpPageSwitched   OpKind = "page:switched"
)

// Operation is a unit of broadcastable intent. Operations are fire-and-forget
// and self-contained: Object carries the full serialized state so that
// out-of-order delivery of independent objects cannot corrupt a scene.
type Operation struct {
	Kind       OpKind          `json:"kind"`
	ObjectID   string          `json:"objectId,omitempty"`
	Object     json.RawMessage `json:"object,omitempty"`
	Page       int             `json:"page"`
	Timestamp  int64           `json:"timestamp"`
	SessionKey string          `json:"sessionKey"`
}
