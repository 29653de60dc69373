package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/render"
)

type contextKey string

const IdentityContextKey = contextKey("identity")

// Identity is the caller identity forwarded by the authenticating gateway.
// Authentication itself happens upstream; this layer only reads the result.
type Identity struct {
	UserID    string
	Name      string
	AvatarURL string
}

// IdentityFromRequest reads the forwarded identity headers, for endpoints
// that accept either a member identity or a share token.
func IdentityFromRequest(r *http.Request) (Identity, bool) {
	id := Identity{
		UserID:    r.Header.Get("X-User-Id"),
		Name:      r.Header.Get("X-User-Name"),
		AvatarURL: r.Header.Get("X-User-Avatar"),
	}
	return id, id.UserID != ""
}

// RequireIdentity rejects requests without a forwarded user id and stores the
// identity in the request context for handlers.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromRequest(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User identity is required"})
			return
		}
		ctx := context.WithValue(r.Context(), IdentityContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the caller identity stored by RequireIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}
