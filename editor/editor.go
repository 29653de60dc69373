package editor

import (
	"encoding/base64"
	"fmt"
	"sync/atomic"
	"time"

	"flowsmartly-studio/core"
	"flowsmartly-studio/scene"

	"github.com/sirupsen/logrus"
)

// ObjectMeta is editor-side metadata for a scene object. Scene objects stay
// opaque; name/lock/visibility live in this side-table keyed by object id and
// never get bolted onto the graph's own objects.
type ObjectMeta struct {
	Name    string
	Locked  bool
	Visible bool
}

// Viewport is the presentation-layer zoom/pan. Invariant: the viewport is
// applied outside the scene graph, so serialized scene data never depends on
// how the user happened to be zoomed.
type Viewport struct {
	Zoom float64
	PanX float64
	PanY float64
}

// Broadcaster is the presence-channel surface the editor emits through.
type Broadcaster interface {
	BroadcastOperation(op core.Operation)
	SendSelection(objectID string)
}

// Editor is the working copy of one open design: the canonical in-memory
// state every other subsystem hangs off. Constructed when a design is opened
// and discarded when the editor closes.
type Editor struct {
	design   core.Design
	role     core.Role
	graph    *scene.Graph
	history  *History
	pages    *Pages
	viewport Viewport
	channel  Broadcaster

	selectedID string
	// dirty is set from both the editing goroutine and the presence stream
	// goroutine, hence atomic.
	dirty atomic.Bool
	meta  map[string]ObjectMeta
}

// New builds an editor for a design working copy. The history and page
// managers are constructed here, once per document, and shared by reference —
// never through package state.
func New(design core.Design, role core.Role, exporter scene.Exporter) *Editor {
	g := scene.NewGraph()
	e := &Editor{
		design:   design,
		role:     role,
		graph:    g,
		history:  NewHistory(g),
		pages:    NewPages(g, exporter, design.Width, design.Height),
		viewport: Viewport{Zoom: 1},
		meta:     make(map[string]ObjectMeta),
	}
	if len(design.Pages) > 0 {
		e.pages.LoadPages(design.Pages)
		if snap := design.Pages[0].Snapshot; snap != "" {
			if err := g.Load([]byte(snap)); err != nil {
				logrus.WithError(err).Error("editor: initial page load failed")
			}
		}
	}
	// Seed history so the first undo lands on the loaded (or empty) state.
	e.history.Push()
	g.OnChange(e.onGraphChange)
	return e
}

// AttachChannel wires the presence channel used for outbound broadcasts.
func (e *Editor) AttachChannel(ch Broadcaster) {
	e.channel = ch
}

func (e *Editor) Graph() *scene.Graph { return e.graph }
func (e *Editor) History() *History   { return e.history }
func (e *Editor) Pages() *Pages       { return e.pages }
func (e *Editor) Role() core.Role     { return e.role }
func (e *Editor) Design() core.Design { return e.design }
func (e *Editor) Dirty() bool         { return e.dirty.Load() }
func (e *Editor) Viewport() Viewport  { return e.viewport }
func (e *Editor) SelectedID() string  { return e.selectedID }

// SetViewport replaces the presentation transform. Zoom is clamped to a sane
// range; the scene graph is never touched.
func (e *Editor) SetViewport(v Viewport) {
	if v.Zoom < 0.05 {
		v.Zoom = 0.05
	}
	if v.Zoom > 20 {
		v.Zoom = 20
	}
	e.viewport = v
}

// SetActivePage switches the visible page and announces the switch, so
// collaborators can see which page this session is looking at.
func (e *Editor) SetActivePage(index int) int {
	idx := e.pages.SetActive(index)
	if e.channel != nil && e.role.CanEdit() {
		e.channel.BroadcastOperation(core.Operation{
			Kind:      core.OpPageSwitched,
			Page:      idx,
			Timestamp: time.Now().UnixMilli(),
		})
	}
	return idx
}

// ApplyPixelEdit writes a committed pixel-edit result back into an image
// object's source. The graph mutation lands in history as a single entry, so
// one undo reverts the whole eraser session.
func (e *Editor) ApplyPixelEdit(objectID string, png []byte) error {
	obj, ok := e.graph.Get(objectID)
	if !ok {
		return fmt.Errorf("object %s not in scene", objectID)
	}
	if obj.Kind != scene.KindImage {
		return fmt.Errorf("object %s is not an image", objectID)
	}
	obj.Source = "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	return e.graph.Set(obj, false)
}

// Select marks an object as selected and advertises it on the channel as a
// soft lock. An empty id clears the selection.
func (e *Editor) Select(objectID string) {
	e.selectedID = objectID
	if e.channel != nil {
		e.channel.SendSelection(objectID)
	}
}

// Meta returns the side-table metadata for an object.
func (e *Editor) Meta(objectID string) ObjectMeta {
	if m, ok := e.meta[objectID]; ok {
		return m
	}
	return ObjectMeta{Visible: true}
}

// SetMeta stores side-table metadata for an object.
func (e *Editor) SetMeta(objectID string, m ObjectMeta) {
	e.meta[objectID] = m
}

// onGraphChange is the single funnel for scene mutations: local edits push
// history, mark the design dirty, queue a thumbnail refresh and go out on the
// wire; remote edits only refresh local derived state.
func (e *Editor) onGraphChange(kind scene.ChangeKind, obj scene.Object, remote bool) {
	e.dirty.Store(true)
	e.pages.ScheduleThumbnail()
	if remote || e.history.Restoring() {
		return
	}
	e.history.Push()
	e.broadcast(kind, obj)
}

func (e *Editor) broadcast(kind scene.ChangeKind, obj scene.Object) {
	if e.channel == nil || !e.role.CanEdit() {
		return
	}
	op := core.Operation{
		ObjectID:  obj.ID,
		Page:      e.pages.ActiveIndex(),
		Timestamp: time.Now().UnixMilli(),
	}
	switch kind {
	case scene.ChangeAdded:
		op.Kind = core.OpObjectAdded
	case scene.ChangeModified:
		op.Kind = core.OpObjectModified
	case scene.ChangeRemoved:
		op.Kind = core.OpObjectRemoved
	}
	if kind != scene.ChangeRemoved {
		raw, err := obj.MarshalRaw()
		if err != nil {
			logrus.WithError(err).Warn("editor: operation encode failed, not broadcast")
			return
		}
		op.Object = raw
	}
	e.channel.BroadcastOperation(op)
}

// ApplyRemote merges a collaborator's operation into the local scene.
// Operations are self-contained full-state payloads, so application is
// last-write-wins: whatever lands last is what the user sees. Operations for
// a page other than the active one only dirty the design; their state arrives
// with the next page switch snapshot.
func (e *Editor) ApplyRemote(op core.Operation) {
	if op.Page != e.pages.ActiveIndex() {
		e.dirty.Store(true)
		return
	}
	switch op.Kind {
	case core.OpObjectAdded, core.OpObjectModified:
		var obj scene.Object
		if err := obj.UnmarshalFrom(op.Object); err != nil {
			logrus.WithError(err).Warn("editor: dropped malformed remote operation")
			return
		}
		if err := e.graph.Set(obj, true); err != nil {
			logrus.WithError(err).Warn("editor: remote operation not applied")
		}
	case core.OpObjectRemoved:
		e.graph.Remove(op.ObjectID, true)
	case core.OpPageSwitched:
		// A collaborator changing their own visible page is presence-only.
	}
}

// Close flushes the active page and releases timers.
func (e *Editor) Close() {
	e.pages.UpdateSnapshot()
	e.pages.Stop()
	e.graph.OnChange(nil)
}
