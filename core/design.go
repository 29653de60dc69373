package core

import (
	"context"
	"time"
)

// Role is the access level a connected session has on a design.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleEditor Role = "EDITOR"
	RoleViewer Role = "VIEWER"
)

// CanEdit reports whether the role is allowed to mutate the design.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

type (
	// Page is one canvas surface within a design. Snapshot is the serialized
	// scene-graph tree; Thumbnail is a small raster preview and stays nil
	// until the first export succeeds.
	Page struct {
		ID        string `json:"id"`
		Snapshot  string `json:"snapshot"`
		Thumbnail []byte `json:"thumbnail,omitempty"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	}

	// Design represents the metadata and content of a user-saved design.
	Design struct {
		ID        string    `json:"id"`
		OwnerID   string    `json:"-"` // Not exposed in JSON responses, used internally.
		Name      string    `json:"name"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
		Pages     []Page    `json:"pages,omitempty"` // Not included in list views.
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// DesignStore defines the persistence layer for user-owned designs.
	// All operations are scoped to a specific owner.
	DesignStore interface {
		// List returns metadata for all designs owned by a user. The returned
		// Design objects should not contain the Pages field to keep the
		// response light.
		List(ctx context.Context, ownerID string) ([]*Design, error)

		// Get returns a single design by its ID, ensuring it belongs to the owner.
		Get(ctx context.Context, ownerID, id string) (*Design, error)

		// Save creates or updates a design for an owner.
		Save(ctx context.Context, design *Design) error

		// Delete removes a design, ensuring it belongs to the owner.
		Delete(ctx context.Context, ownerID, id string) error
	}
)
