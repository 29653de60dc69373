package editor

import (
	"sync"
	"time"

	"flowsmartly-studio/core"
	"flowsmartly-studio/scene"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// thumbnailIdle is how long after the last edit the thumbnail is re-exported.
const thumbnailIdle = time.Second

// thumbnailScale keeps previews small regardless of page size.
const thumbnailScale = 0.15

// Pages manages the ordered page list of a design. Snapshots are plain
// serialized strings, never live object references, so two pages can never
// share mutable scene state. A single debounce timer owned here coalesces
// thumbnail regeneration; mutation handlers only ever call ScheduleThumbnail.
type Pages struct {
	mu       sync.Mutex
	graph    *scene.Graph
	exporter scene.Exporter
	pages    []core.Page
	active   int
	timer    *time.Timer
}

// NewPages creates a page list with one blank page of the given size.
func NewPages(g *scene.Graph, exporter scene.Exporter, width, height int) *Pages {
	return &Pages{
		graph:    g,
		exporter: exporter,
		pages: []core.Page{{
			ID:     ulid.Make().String(),
			Width:  width,
			Height: height,
		}},
	}
}

// LoadPages replaces the page list from persisted state. An empty list keeps
// the current pages: a design always has at least one page.
func (p *Pages) LoadPages(pages []core.Page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(pages) == 0 {
		return
	}
	p.pages = make([]core.Page, len(pages))
	copy(p.pages, pages)
	p.active = 0
}

// Pages returns a copy of the page list.
func (p *Pages) Pages() []core.Page {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]core.Page, len(p.pages))
	copy(out, p.pages)
	return out
}

// ActiveIndex returns the index of the active page.
func (p *Pages) ActiveIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Len returns the number of pages.
func (p *Pages) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages)
}

// AddPage inserts a blank page immediately after the given index and makes it
// active. An out-of-range index appends at the end.
func (p *Pages) AddPage(after int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if after < 0 || after >= len(p.pages) {
		after = len(p.pages) - 1
	}
	ref := p.pages[after]
	page := core.Page{
		ID:     ulid.Make().String(),
		Width:  ref.Width,
		Height: ref.Height,
	}
	p.flushActiveLocked()
	p.pages = append(p.pages[:after+1], append([]core.Page{page}, p.pages[after+1:]...)...)
	p.active = after + 1
	p.loadActiveLocked()
	return p.active
}

// DuplicatePage inserts a full copy of a page's snapshot and thumbnail
// immediately after it and makes the copy active.
func (p *Pages) DuplicatePage(index int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 || index >= len(p.pages) {
		return p.active
	}
	p.flushActiveLocked()
	src := p.pages[index]
	dup := core.Page{
		ID:       ulid.Make().String(),
		Snapshot: src.Snapshot,
		Width:    src.Width,
		Height:   src.Height,
	}
	if src.Thumbnail != nil {
		dup.Thumbnail = append([]byte(nil), src.Thumbnail...)
	}
	p.pages = append(p.pages[:index+1], append([]core.Page{dup}, p.pages[index+1:]...)...)
	p.active = index + 1
	p.loadActiveLocked()
	return p.active
}

// DeletePage removes a page. Deleting the only remaining page is refused; the
// active index is recomputed to stay valid, preferring the same visual
// position and clamping at the list boundary.
func (p *Pages) DeletePage(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pages) <= 1 || index < 0 || index >= len(p.pages) {
		return false
	}
	wasActive := index == p.active
	p.pages = append(p.pages[:index], p.pages[index+1:]...)
	if p.active > index || p.active >= len(p.pages) {
		p.active--
	}
	if p.active < 0 {
		p.active = 0
	}
	if wasActive {
		p.loadActiveLocked()
	}
	return true
}

// SetActive switches the visible page, clamping to a valid index. The
// outgoing page's live scene state is flushed into its snapshot slot before
// the switch, and the incoming page's snapshot is loaded into the graph after.
func (p *Pages) SetActive(index int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if index < 0 {
		index = 0
	}
	if index >= len(p.pages) {
		index = len(p.pages) - 1
	}
	if index == p.active {
		return p.active
	}

	p.flushActiveLocked()
	p.active = index
	p.loadActiveLocked()
	return p.active
}

func (p *Pages) loadActiveLocked() {
	in := p.pages[p.active]
	if in.Snapshot == "" {
		p.graph.Clear()
		return
	}
	if err := p.graph.Load([]byte(in.Snapshot)); err != nil {
		logrus.WithError(err).WithField("page", in.ID).Error("pages: load snapshot failed")
	}
}

// UpdateSnapshot serializes the live graph and a low-resolution thumbnail
// into the active page's slot. Best-effort: serialization failure leaves the
// slot unchanged and thumbnail capture failure leaves the old preview.
func (p *Pages) UpdateSnapshot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushActiveLocked()
	p.exportThumbnailLocked()
}

func (p *Pages) flushActiveLocked() {
	data, err := p.graph.Serialize()
	if err != nil {
		logrus.WithError(err).Warn("pages: snapshot skipped")
		return
	}
	p.pages[p.active].Snapshot = string(data)
}

func (p *Pages) exportThumbnailLocked() {
	if p.exporter == nil {
		return
	}
	thumb, err := p.exporter(p.graph, thumbnailScale)
	if err != nil {
		logrus.WithError(err).Debug("pages: thumbnail export failed")
		return
	}
	p.pages[p.active].Thumbnail = thumb
}

// ScheduleThumbnail queues a debounced snapshot+thumbnail refresh, restarting
// the idle timer on every call.
func (p *Pages) ScheduleThumbnail() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(thumbnailIdle, p.UpdateSnapshot)
}

// Stop cancels any pending thumbnail refresh.
func (p *Pages) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
