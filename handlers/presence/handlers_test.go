package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"flowsmartly-studio/core"
	"flowsmartly-studio/middleware"
	"flowsmartly-studio/stores/memory"

	"github.com/go-chi/chi/v5"
)

var testSecret = []byte("test-share-secret")

func testRouter(t *testing.T) (chi.Router, Options) {
	t.Helper()
	store := memory.NewStore()
	if err := store.Save(context.Background(), &core.Design{ID: "d1", OwnerID: "owner1", Name: "owned", Width: 800, Height: 600}); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	o := Options{Hub: NewHub(), Store: store, ShareSecret: testSecret}

	r := chi.NewRouter()
	r.Route("/designs/{id}/presence", func(r chi.Router) {
		r.Get("/", HandleStream(o))
		r.Post("/broadcast", HandleBroadcast(o))
		r.Post("/cursor", HandleCursor(o))
		r.Post("/selection", HandleSelection(o))
	})
	return r, o
}

// streamRecorder is a Flusher-capable response writer safe to read while the
// stream handler keeps writing on its own goroutine.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	body   bytes.Buffer
	code   int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: make(http.Header), code: http.StatusOK}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

// openStream runs the stream handler in the background and returns the parsed
// first event plus a stop function that disconnects the client. The recorder's
// header map is only safe to inspect after stop.
func openStream(t *testing.T, r chi.Router, o Options, target string, headers map[string]string) (core.PresenceEvent, *streamRecorder, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.ServeHTTP(rec, req)
	}()

	stop := func() {
		cancel()
		<-done
	}
	t.Cleanup(stop)

	deadline := time.After(2 * time.Second)
	for !strings.Contains(rec.Body(), "\n\n") {
		select {
		case <-deadline:
			t.Fatal("stream never produced its init event")
		case <-time.After(5 * time.Millisecond):
		}
	}
	init := parseFirstEvent(t, rec.Body())
	return init, rec, stop
}

func parseFirstEvent(t *testing.T, body string) core.PresenceEvent {
	t.Helper()
	line, _, ok := strings.Cut(body, "\n\n")
	if !ok || !strings.HasPrefix(line, "data: ") {
		t.Fatalf("body %q does not start with an event", body)
	}
	var ev core.PresenceEvent
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func TestHandleStream_InitForOwner(t *testing.T) {
	r, o := testRouter(t)

	init, rec, stop := openStream(t, r, o, "/designs/d1/presence", map[string]string{
		"X-User-Id":   "owner1",
		"X-User-Name": "Owner",
	})
	stop()

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want text/event-stream", ct)
	}
	if init.Type != core.EventInit {
		t.Fatalf("first event = %q, want %q", init.Type, core.EventInit)
	}
	if init.SessionKey == "" {
		t.Error("init must carry the session key")
	}
	if init.Role != core.RoleOwner {
		t.Errorf("role = %q, want owner for the design's creator", init.Role)
	}
	if len(init.Roster) != 1 || init.Roster[0].UserID != "owner1" {
		t.Errorf("roster = %+v, want the joiner itself", init.Roster)
	}
}

func TestHandleStream_NonOwnerJoinsAsEditor(t *testing.T) {
	r, o := testRouter(t)

	init, _, _ := openStream(t, r, o, "/designs/d1/presence", map[string]string{
		"X-User-Id": "someone-else",
	})
	if init.Role != core.RoleEditor {
		t.Errorf("role = %q, want editor for a non-owner member", init.Role)
	}
}

func TestHandleStream_ShareTokenJoinsAsViewer(t *testing.T) {
	r, o := testRouter(t)
	token, err := middleware.NewShareToken(testSecret, "d1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	init, _, _ := openStream(t, r, o, "/designs/d1/presence?share_token="+token, nil)
	if init.Role != core.RoleViewer {
		t.Errorf("role = %q, want viewer for a share-token guest", init.Role)
	}
}

func TestHandleStream_RejectsAnonymousAndWrongToken(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/designs/d1/presence", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous stream status = %d, want 401", rec.Code)
	}

	// A valid token for a different design grants nothing here.
	token, err := middleware.NewShareToken(testSecret, "other-design", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/designs/d1/presence?share_token="+token, nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong-design token status = %d, want 401", rec.Code)
	}
}

func TestHandleStream_LeaveOnDisconnect(t *testing.T) {
	r, o := testRouter(t)

	_, _, stop := openStream(t, r, o, "/designs/d1/presence", map[string]string{"X-User-Id": "owner1"})
	if got := o.Hub.RoomCounts()["d1"]; got != 1 {
		t.Fatalf("room count = %d, want 1 while connected", got)
	}
	stop()
	if got := o.Hub.RoomCounts()["d1"]; got != 0 {
		t.Errorf("room count = %d, want 0 after disconnect", got)
	}
}

func postEvent(t *testing.T, r chi.Router, path string, ev core.PresenceEvent) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleBroadcast_FansOutForEditors(t *testing.T) {
	r, o := testRouter(t)
	init, _, _ := openStream(t, r, o, "/designs/d1/presence", map[string]string{"X-User-Id": "owner1"})

	rec := postEvent(t, r, "/designs/d1/presence/broadcast", core.PresenceEvent{
		Type:       core.EventCanvasOp,
		SessionKey: init.SessionKey,
		Op:         &core.Operation{Kind: core.OpObjectAdded, ObjectID: "r1"},
	})
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBroadcast_RejectsViewersAndUnknownSessions(t *testing.T) {
	r, o := testRouter(t)
	token, err := middleware.NewShareToken(testSecret, "d1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	init, _, _ := openStream(t, r, o, "/designs/d1/presence?share_token="+token, nil)

	rec := postEvent(t, r, "/designs/d1/presence/broadcast", core.PresenceEvent{
		SessionKey: init.SessionKey,
		Op:         &core.Operation{Kind: core.OpObjectAdded, ObjectID: "r1"},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer broadcast status = %d, want 403", rec.Code)
	}

	rec = postEvent(t, r, "/designs/d1/presence/broadcast", core.PresenceEvent{
		SessionKey: "no-such-session",
		Op:         &core.Operation{Kind: core.OpObjectAdded, ObjectID: "r1"},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("unknown session status = %d, want 403", rec.Code)
	}

	rec = postEvent(t, r, "/designs/d1/presence/broadcast", core.PresenceEvent{
		SessionKey: init.SessionKey,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("op-less broadcast status = %d, want 400", rec.Code)
	}
}

func TestHandleCursor_RejectsViewers(t *testing.T) {
	r, o := testRouter(t)
	token, err := middleware.NewShareToken(testSecret, "d1", time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	init, _, _ := openStream(t, r, o, "/designs/d1/presence?share_token="+token, nil)

	rec := postEvent(t, r, "/designs/d1/presence/cursor", core.PresenceEvent{
		SessionKey: init.SessionKey,
		Cursor:     &core.Cursor{X: 10, Y: 20, Page: 0},
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer cursor status = %d, want 403", rec.Code)
	}
	s, _ := o.Hub.Session("d1", init.SessionKey)
	if s.Cursor.X != 0 || s.Cursor.Y != 0 {
		t.Errorf("viewer cursor was stored: %+v", s.Cursor)
	}
}

func TestHandleCursorAndSelection(t *testing.T) {
	r, o := testRouter(t)
	init, _, _ := openStream(t, r, o, "/designs/d1/presence", map[string]string{"X-User-Id": "owner1"})

	rec := postEvent(t, r, "/designs/d1/presence/cursor", core.PresenceEvent{
		SessionKey: init.SessionKey,
		Cursor:     &core.Cursor{X: 10, Y: 20, Page: 0},
	})
	if rec.Code != http.StatusAccepted {
		t.Errorf("cursor status = %d, want 202", rec.Code)
	}
	s, _ := o.Hub.Session("d1", init.SessionKey)
	if s.Cursor.X != 10 || s.Cursor.Y != 20 {
		t.Errorf("stored cursor = %+v, want (10,20)", s.Cursor)
	}

	rec = postEvent(t, r, "/designs/d1/presence/selection", core.PresenceEvent{
		SessionKey: init.SessionKey,
		ObjectID:   "r7",
	})
	if rec.Code != http.StatusAccepted {
		t.Errorf("selection status = %d, want 202", rec.Code)
	}
	s, _ = o.Hub.Session("d1", init.SessionKey)
	if s.SelectedID != "r7" {
		t.Errorf("stored selection = %q, want r7", s.SelectedID)
	}

	rec = postEvent(t, r, "/designs/d1/presence/cursor", core.PresenceEvent{SessionKey: init.SessionKey})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("cursor-less post status = %d, want 400", rec.Code)
	}
}
