package presence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"flowsmartly-studio/core"

	"github.com/sirupsen/logrus"
)

// State of the channel connection.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

const (
	// Reconnect backoff: starts at baseBackoff, doubles each consecutive
	// failure, capped at maxBackoff. The attempt counter resets on a
	// successful presence:init.
	baseBackoff = time.Second
	maxBackoff  = 30 * time.Second

	// cursorWindow is the coalescing window for cursor sends: at most one
	// outbound cursor post per window, carrying the last position seen.
	cursorWindow = 50 * time.Millisecond
)

// Handlers are the channel's upward callbacks. All are optional. OnOperation
// receives remote canvas operations as-is for merging into the local scene;
// OnRoster fires after any roster, cursor or selection change.
type Handlers struct {
	OnOperation func(core.Operation)
	OnRoster    func([]core.Session)
	OnState     func(State)
}

// Channel is the client side of the collaboration protocol: one server-push
// subscription per open design, plus fire-and-forget outbound posts for
// operations, selection and (throttled) cursor positions. Transient network
// failure is never surfaced; the channel reconnects with exponential backoff
// and presence data self-heals on the next update.
type Channel struct {
	baseURL    string
	designID   string
	shareToken string
	client     *http.Client
	handlers   Handlers

	// post is the outbound transport, replaceable in tests.
	post func(path string, body any)

	mu         sync.Mutex
	state      State
	sessionKey string
	role       core.Role
	roster     map[string]core.Session // keyed by session key
	attempts   int

	pendingCursor *core.Cursor
	cursorTimer   *time.Timer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewChannel builds a channel for one design. shareToken may be empty for
// authenticated members; guests pass the design's share token and are joined
// as viewers.
func NewChannel(baseURL, designID, shareToken string, client *http.Client, handlers Handlers) *Channel {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	c := &Channel{
		baseURL:    baseURL,
		designID:   designID,
		shareToken: shareToken,
		client:     client,
		handlers:   handlers,
		roster:     make(map[string]core.Session),
	}
	c.post = c.httpPost
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SessionKey returns the server-issued key, empty until connected.
func (c *Channel) SessionKey() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionKey
}

// Role returns the viewer's role as issued by presence:init.
func (c *Channel) Role() core.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

// Roster returns the current collaborator list, ordered by session key.
func (c *Channel) Roster() []core.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rosterLocked()
}

func (c *Channel) rosterLocked() []core.Session {
	out := make([]core.Session, 0, len(c.roster))
	for _, s := range c.roster {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Attempts returns the consecutive failed connection attempts so far.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

func (c *Channel) streamURL() string {
	u := fmt.Sprintf("%s/designs/%s/presence", c.baseURL, c.designID)
	if c.shareToken != "" {
		u += "?share_token=" + c.shareToken
	}
	return u
}

// Connect starts the subscription loop. It returns immediately; the loop
// runs until Close or context cancellation.
func (c *Channel) Connect(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx)
	}()
}

func (c *Channel) run(ctx context.Context) {
	src := &eventSource{
		client:   noTimeout(c.client),
		url:      c.streamURL(),
		headers:  map[string]string{},
		listener: c.dispatch,
	}
	for {
		c.setState(Connecting)
		err := src.stream(ctx)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.attempts++
		delay := BackoffDelay(c.attempts)
		c.mu.Unlock()

		logrus.WithFields(logrus.Fields{
			"design": c.designID,
			"delay":  delay,
			"error":  err,
		}).Debug("presence: stream closed, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// BackoffDelay returns the delay scheduled after the nth consecutive
// connection failure: 1s doubling per attempt, capped at 30s.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseBackoff << (attempt - 1)
	if d <= 0 || d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.handlers.OnState != nil {
		c.handlers.OnState(s)
	}
}

// dispatch handles one server-push event. Malformed payloads are swallowed:
// a broken event must never take the editor down.
func (c *Channel) dispatch(_, data string) {
	var ev core.PresenceEvent
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		logrus.WithError(err).Debug("presence: dropped malformed event")
		return
	}

	switch ev.Type {
	case core.EventInit:
		c.mu.Lock()
		c.state = Connected
		c.sessionKey = ev.SessionKey
		c.role = ev.Role
		c.attempts = 0
		c.roster = make(map[string]core.Session, len(ev.Roster))
		for _, s := range ev.Roster {
			c.roster[s.Key] = s
		}
		c.mu.Unlock()
		if c.handlers.OnState != nil {
			c.handlers.OnState(Connected)
		}
		c.notifyRoster()

	case core.EventJoin:
		if ev.Session == nil {
			return
		}
		c.mu.Lock()
		// Idempotent: a join for a user already in the roster is ignored.
		for _, s := range c.roster {
			if s.UserID == ev.Session.UserID {
				c.mu.Unlock()
				return
			}
		}
		c.roster[ev.Session.Key] = *ev.Session
		c.mu.Unlock()
		c.notifyRoster()

	case core.EventLeave:
		c.mu.Lock()
		_, ok := c.roster[ev.SessionKey]
		delete(c.roster, ev.SessionKey)
		c.mu.Unlock()
		if ok {
			c.notifyRoster()
		}

	case core.EventCursor:
		if ev.Cursor == nil {
			return
		}
		c.mu.Lock()
		if s, ok := c.roster[ev.SessionKey]; ok {
			s.Cursor = *ev.Cursor
			c.roster[ev.SessionKey] = s
		}
		c.mu.Unlock()
		c.notifyRoster()

	case core.EventSelection:
		c.mu.Lock()
		if s, ok := c.roster[ev.SessionKey]; ok {
			s.SelectedID = ev.ObjectID
			c.roster[ev.SessionKey] = s
		}
		c.mu.Unlock()
		c.notifyRoster()

	case core.EventCanvasOp:
		if ev.Op == nil {
			return
		}
		if c.handlers.OnOperation != nil {
			c.handlers.OnOperation(*ev.Op)
		}

	case core.EventHeartbeat:
		// Keep-alive, no state change.

	default:
		logrus.WithField("type", ev.Type).Debug("presence: unknown event ignored")
	}
}

func (c *Channel) notifyRoster() {
	if c.handlers.OnRoster == nil {
		return
	}
	c.mu.Lock()
	roster := c.rosterLocked()
	c.mu.Unlock()
	c.handlers.OnRoster(roster)
}

// BroadcastOperation posts a canvas operation for fan-out to collaborators.
// Best-effort: failures are dropped, the next full snapshot self-heals.
func (c *Channel) BroadcastOperation(op core.Operation) {
	c.mu.Lock()
	op.SessionKey = c.sessionKey
	c.mu.Unlock()
	c.post(fmt.Sprintf("/designs/%s/presence/broadcast", c.designID), core.PresenceEvent{
		Type:       core.EventCanvasOp,
		SessionKey: op.SessionKey,
		Op:         &op,
	})
}

// SendSelection advertises the locally selected object as a soft lock.
func (c *Channel) SendSelection(objectID string) {
	c.mu.Lock()
	key := c.sessionKey
	c.mu.Unlock()
	c.post(fmt.Sprintf("/designs/%s/presence/selection", c.designID), core.PresenceEvent{
		Type:       core.EventSelection,
		SessionKey: key,
		ObjectID:   objectID,
	})
}

// SendCursor posts the local cursor position, coalesced to at most one send
// per 50ms window; only the last position in a window goes out.
func (c *Channel) SendCursor(x, y float64, page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingCursor = &core.Cursor{X: x, Y: y, Page: page}
	if c.cursorTimer != nil {
		return
	}
	c.cursorTimer = time.AfterFunc(cursorWindow, c.flushCursor)
}

func (c *Channel) flushCursor() {
	c.mu.Lock()
	cur := c.pendingCursor
	key := c.sessionKey
	c.pendingCursor = nil
	c.cursorTimer = nil
	c.mu.Unlock()
	if cur == nil {
		return
	}
	c.post(fmt.Sprintf("/designs/%s/presence/cursor", c.designID), core.PresenceEvent{
		Type:       core.EventCursor,
		SessionKey: key,
		Cursor:     cur,
	})
}

// httpPost is the default outbound transport: an immediate fire-and-forget
// request. Presence data is ephemeral, so errors are logged and dropped.
func (c *Channel) httpPost(path string, body any) {
	payload, err := json.Marshal(body)
	if err != nil {
		logrus.WithError(err).Debug("presence: encode outbound failed")
		return
	}
	go func() {
		resp, err := c.client.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
		if err != nil {
			logrus.WithError(err).Debug("presence: outbound post dropped")
			return
		}
		resp.Body.Close()
	}()
}

// Close tears the channel down and cancels any pending cursor send.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	if c.cursorTimer != nil {
		c.cursorTimer.Stop()
		c.cursorTimer = nil
		c.pendingCursor = nil
	}
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
