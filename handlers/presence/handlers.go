package presence

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"flowsmartly-studio/core"
	"flowsmartly-studio/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// heartbeatInterval keeps intermediaries from timing the stream out.
const heartbeatInterval = 15 * time.Second

// Options wires the presence handlers to their collaborators.
type Options struct {
	Hub         *Hub
	Store       core.DesignStore
	ShareSecret []byte
}

// resolveSession builds the session identity for a stream request. Members
// are identified by the gateway headers; guests may instead present a share
// token, which grants the viewer role on exactly one design.
func (o Options) resolveSession(r *http.Request, designID string) (core.Session, error) {
	if token := r.URL.Query().Get("share_token"); token != "" {
		grantedID, err := middleware.ParseShareToken(o.ShareSecret, token)
		if err != nil || grantedID != designID {
			return core.Session{}, fmt.Errorf("share token not valid for this design")
		}
		return core.Session{
			Key:    ulid.Make().String(),
			UserID: "guest-" + ulid.Make().String(),
			Name:   "Guest",
			Role:   core.RoleViewer,
		}, nil
	}

	id, ok := middleware.IdentityFromRequest(r)
	if !ok {
		return core.Session{}, fmt.Errorf("identity required")
	}
	role := core.RoleEditor
	if design, err := o.Store.Get(r.Context(), id.UserID, designID); err == nil && design != nil {
		role = core.RoleOwner
	}
	return core.Session{
		Key:       ulid.Make().String(),
		UserID:    id.UserID,
		Name:      id.Name,
		AvatarURL: id.AvatarURL,
		Role:      role,
	}, nil
}

// HandleStream serves the server-push presence event stream for one design.
// The first event is presence:init with the roster, the session key and the
// viewer's role; afterwards room events and heartbeats flow until the client
// goes away.
func HandleStream(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designID := chi.URLParam(r, "id")
		if designID == "" {
			http.Error(w, "design id is required", http.StatusBadRequest)
			return
		}

		session, err := o.resolveSession(r, designID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		events, roster := o.Hub.Join(designID, session)
		defer o.Hub.Leave(designID, session.Key)

		writeEvent(w, flusher, core.PresenceEvent{
			Type:       core.EventInit,
			SessionKey: session.Key,
			Role:       session.Role,
			Roster:     append(roster, session),
		})

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev, open := <-events:
				if !open {
					return
				}
				writeEvent(w, flusher, ev)
			case <-heartbeat.C:
				writeEvent(w, flusher, core.PresenceEvent{Type: core.EventHeartbeat})
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev core.PresenceEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).Error("presence: encode event failed")
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// senderSession resolves the posting session; callers enforce role checks.
func (o Options) senderSession(designID, sessionKey string) (core.Session, bool) {
	session, ok := o.Hub.Session(designID, sessionKey)
	if !ok {
		return core.Session{}, false
	}
	return session, true
}

// HandleBroadcast accepts a canvas operation and fans it out to every other
// session in the design's room.
func HandleBroadcast(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designID := chi.URLParam(r, "id")
		var ev core.PresenceEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Op == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "operation payload is required"})
			return
		}

		session, ok := o.senderSession(designID, ev.SessionKey)
		if !ok {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "unknown session"})
			return
		}
		if !session.Role.CanEdit() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "viewers cannot broadcast"})
			return
		}

		op := *ev.Op
		op.SessionKey = ev.SessionKey
		o.Hub.Broadcast(designID, op)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleCursor records and fans out a session's cursor position.
func HandleCursor(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designID := chi.URLParam(r, "id")
		var ev core.PresenceEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Cursor == nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "cursor payload is required"})
			return
		}
		session, ok := o.senderSession(designID, ev.SessionKey)
		if !ok {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "unknown session"})
			return
		}
		if !session.Role.CanEdit() {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "viewers cannot post cursor updates"})
			return
		}
		o.Hub.UpdateCursor(designID, ev.SessionKey, *ev.Cursor)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]bool{"success": true})
	}
}

// HandleSelection records and fans out a session's selected object, the
// advisory soft lock shown to other collaborators.
func HandleSelection(o Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		designID := chi.URLParam(r, "id")
		var ev core.PresenceEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "selection payload is required"})
			return
		}
		if _, ok := o.senderSession(designID, ev.SessionKey); !ok {
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "unknown session"})
			return
		}
		o.Hub.UpdateSelection(designID, ev.SessionKey, ev.ObjectID)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]bool{"success": true})
	}
}
