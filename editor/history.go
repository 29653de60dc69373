package editor

import (
	"flowsmartly-studio/scene"

	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit bounds the undo stack; the oldest entry is evicted first.
const DefaultHistoryLimit = 50

// History is a linear undo/redo stack of serialized scene snapshots. One
// instance is constructed per open design and injected into every consumer;
// history is never package-level state, so two editors mounted at once cannot
// corrupt each other.
type History struct {
	graph     *scene.Graph
	entries   [][]byte
	cursor    int // index of the current entry in entries
	limit     int
	restoring bool
}

// NewHistory creates an empty history bound to a graph. Callers push the
// initial state explicitly once the graph is loaded, so the first undo lands
// on a defined state instead of a missing entry.
func NewHistory(g *scene.Graph) *History {
	return &History{graph: g, cursor: -1, limit: DefaultHistoryLimit}
}

// Push captures the current graph as a new entry. It is a no-op while a
// restore is in progress, discards any forward (redo) entries, and evicts the
// oldest entry when the stack exceeds its limit.
func (h *History) Push() {
	if h.restoring {
		return
	}
	data, err := h.graph.Serialize()
	if err != nil {
		logrus.WithError(err).Warn("history: snapshot failed, entry dropped")
		return
	}
	h.entries = append(h.entries[:h.cursor+1], data)
	if len(h.entries) > h.limit {
		h.entries = h.entries[1:]
	}
	h.cursor = len(h.entries) - 1
}

// Undo restores the previous entry. No-op at the earliest entry.
func (h *History) Undo() {
	if !h.CanUndo() {
		return
	}
	h.restore(h.cursor - 1)
}

// Redo restores the next entry. No-op at the latest entry.
func (h *History) Redo() {
	if !h.CanRedo() {
		return
	}
	h.restore(h.cursor + 1)
}

func (h *History) restore(to int) {
	h.restoring = true
	defer func() { h.restoring = false }()

	if err := h.graph.Load(h.entries[to]); err != nil {
		// A corrupt entry aborts the restore; history state is unchanged.
		logrus.WithError(err).Error("history: restore failed")
		return
	}
	h.cursor = to
}

// CanUndo reports whether an earlier entry exists.
func (h *History) CanUndo() bool {
	return h.cursor > 0
}

// CanRedo reports whether a later entry exists.
func (h *History) CanRedo() bool {
	return h.cursor >= 0 && h.cursor < len(h.entries)-1
}

// Restoring reports whether an undo/redo is being applied. Mutation handlers
// use it to avoid turning a restore into a fresh history entry.
func (h *History) Restoring() bool {
	return h.restoring
}

// Len returns the number of entries currently held.
func (h *History) Len() int {
	return len(h.entries)
}
