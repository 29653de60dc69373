package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequireIdentity_RejectsAnonymous(t *testing.T) {
	handler := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without an identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRequireIdentity_StoresIdentityInContext(t *testing.T) {
	var got Identity
	handler := RequireIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		got = id
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "u1")
	req.Header.Set("X-User-Name", "Ada")
	req.Header.Set("X-User-Avatar", "https://cdn.test/a.png")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got.UserID != "u1" || got.Name != "Ada" || got.AvatarURL != "https://cdn.test/a.png" {
		t.Errorf("identity = %+v", got)
	}
}

func TestIdentityFromRequest_RequiresUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Name", "Nameless")
	if _, ok := IdentityFromRequest(req); ok {
		t.Error("identity without a user id should not be accepted")
	}
}
