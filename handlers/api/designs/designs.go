package designs

import (
	"encoding/json"
	"net/http"
	"time"

	"flowsmartly-studio/core"
	"flowsmartly-studio/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// envelope is the response shape shared by every API endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Success: false, Error: msg})
}

type designPayload struct {
	Name   string      `json:"name"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Pages  []core.Page `json:"pages"`
}

// HandleCreate creates a design for the authenticated user. A payload with no
// pages gets one blank page at the design size.
func HandleCreate(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		var payload designPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid design payload")
			return
		}
		if payload.Width <= 0 || payload.Height <= 0 {
			respondError(w, r, http.StatusBadRequest, "design dimensions are required")
			return
		}
		if payload.Name == "" {
			payload.Name = "Untitled design"
		}
		if len(payload.Pages) == 0 {
			payload.Pages = []core.Page{{
				ID:     ulid.Make().String(),
				Width:  payload.Width,
				Height: payload.Height,
			}}
		}

		design := &core.Design{
			ID:      ulid.Make().String(),
			OwnerID: identity.UserID,
			Name:    payload.Name,
			Width:   payload.Width,
			Height:  payload.Height,
			Pages:   payload.Pages,
		}
		if err := store.Save(r.Context(), design); err != nil {
			logrus.WithError(err).WithField("user_id", identity.UserID).Error("Failed to create design")
			respondError(w, r, http.StatusInternalServerError, "failed to create design")
			return
		}
		respond(w, r, http.StatusCreated, design)
	}
}

// HandleList returns design metadata for the authenticated user.
func HandleList(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		designs, err := store.List(r.Context(), identity.UserID)
		if err != nil {
			logrus.WithError(err).WithField("user_id", identity.UserID).Error("Failed to list designs")
			respondError(w, r, http.StatusInternalServerError, "failed to list designs")
			return
		}
		if designs == nil {
			designs = []*core.Design{}
		}
		respond(w, r, http.StatusOK, designs)
	}
}

// HandleGet returns a single design with its full page list.
func HandleGet(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		id := chi.URLParam(r, "id")
		design, err := store.Get(r.Context(), identity.UserID, id)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":   identity.UserID,
				"design_id": id,
			}).Warn("Failed to get design")
			respondError(w, r, http.StatusNotFound, "design not found")
			return
		}
		respond(w, r, http.StatusOK, design)
	}
}

// HandleSave updates a design's content (name and pages).
func HandleSave(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		id := chi.URLParam(r, "id")
		existing, err := store.Get(r.Context(), identity.UserID, id)
		if err != nil {
			respondError(w, r, http.StatusNotFound, "design not found")
			return
		}

		var payload designPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, r, http.StatusBadRequest, "invalid design payload")
			return
		}
		if payload.Name != "" {
			existing.Name = payload.Name
		}
		if len(payload.Pages) > 0 {
			existing.Pages = payload.Pages
		}
		existing.UpdatedAt = time.Now()

		if err := store.Save(r.Context(), existing); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":   identity.UserID,
				"design_id": id,
			}).Error("Failed to save design")
			respondError(w, r, http.StatusInternalServerError, "failed to save design")
			return
		}
		respond(w, r, http.StatusOK, existing)
	}
}

// HandleDelete removes a design.
func HandleDelete(store core.DesignStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		id := chi.URLParam(r, "id")
		if err := store.Delete(r.Context(), identity.UserID, id); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"user_id":   identity.UserID,
				"design_id": id,
			}).Error("Failed to delete design")
			respondError(w, r, http.StatusInternalServerError, "failed to delete design")
			return
		}
		respond(w, r, http.StatusOK, nil)
	}
}

// HandleShareToken issues a viewer share token for a design the caller owns.
func HandleShareToken(store core.DesignStore, secret []byte, ttl time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFrom(r.Context())
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "identity required")
			return
		}

		id := chi.URLParam(r, "id")
		if _, err := store.Get(r.Context(), identity.UserID, id); err != nil {
			respondError(w, r, http.StatusNotFound, "design not found")
			return
		}

		token, err := middleware.NewShareToken(secret, id, ttl)
		if err != nil {
			logrus.WithError(err).WithField("design_id", id).Error("Failed to sign share token")
			respondError(w, r, http.StatusInternalServerError, "failed to create share token")
			return
		}
		respond(w, r, http.StatusOK, map[string]string{"shareToken": token})
	}
}
