package core

type (
	// Cursor is a collaborator's last-known pointer position, in canvas
	// coordinates of the page it is on.
	Cursor struct {
		X    float64 `json:"x"`
		Y    float64 `json:"y"`
		Page int     `json:"page"`
	}

	// Session is a per-connection identity on the presence channel. One user
	// opening two tabs holds two sessions with distinct keys.
	Session struct {
		Key        string `json:"key"`
		UserID     string `json:"userId"`
		Name       string `json:"name"`
		AvatarURL  string `json:"avatarUrl,omitempty"`
		Role       Role   `json:"role"`
		Cursor     Cursor `json:"cursor"`
		SelectedID string `json:"selectedId,omitempty"`
	}
)
