package scene

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ChangeKind describes what a graph mutation did to an object.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

// Listener receives object-level change events. The remote flag is true when
// the mutation came from a collaborator rather than local user input, so
// consumers can skip history pushes and re-broadcasts for those.
type Listener func(kind ChangeKind, obj Object, remote bool)

// Exporter rasterizes a graph to encoded image bytes at the given scale.
// Rendering lives in the embedding engine; the graph only carries the hook.
type Exporter func(g *Graph, scale float64) ([]byte, error)

// Graph is an ordered scene-graph: a list of objects in paint order, keyed by
// id. It is the serialization boundary between the editor core and the
// rendering engine, and deliberately holds no viewport state so that its
// serialized form is always viewport-independent.
//
// Graph is safe for concurrent use: the thumbnail debounce timer and the
// presence stream both touch it from goroutines other than the editing one.
// Change events fire outside the lock so a listener may call back into the
// graph, e.g. to serialize a history entry.
type Graph struct {
	mu       sync.RWMutex
	order    []string
	objects  map[string]Object
	listener Listener
}

// snapshot is the self-describing serialized form of a graph.
type snapshot struct {
	Version int      `json:"version"`
	Objects []Object `json:"objects"`
}

const snapshotVersion = 1

func NewGraph() *Graph {
	return &Graph{objects: make(map[string]Object)}
}

// OnChange registers the single change listener. A nil listener detaches.
func (g *Graph) OnChange(l Listener) {
	g.mu.Lock()
	g.listener = l
	g.mu.Unlock()
}

func (g *Graph) emit(kind ChangeKind, obj Object, remote bool) {
	g.mu.RLock()
	l := g.listener
	g.mu.RUnlock()
	if l != nil {
		l(kind, obj, remote)
	}
}

// Len returns the number of objects in the graph.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.order)
}

// Objects returns the objects in paint order.
func (g *Graph) Objects() []Object {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.objectsLocked()
}

func (g *Graph) objectsLocked() []Object {
	out := make([]Object, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.objects[id])
	}
	return out
}

// Get returns the object with the given id.
func (g *Graph) Get(id string) (Object, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.objects[id]
	return o, ok
}

// Add inserts a new object at the top of the paint order.
func (g *Graph) Add(obj Object, remote bool) error {
	if obj.ID == "" {
		return fmt.Errorf("object id is required")
	}
	g.mu.Lock()
	if _, exists := g.objects[obj.ID]; exists {
		g.mu.Unlock()
		return fmt.Errorf("object %s already in graph", obj.ID)
	}
	g.objects[obj.ID] = obj
	g.order = append(g.order, obj.ID)
	g.mu.Unlock()
	g.emit(ChangeAdded, obj, remote)
	return nil
}

// Set replaces an object's state in place, keeping its paint order. Unknown
// ids are inserted instead, so a remote modify arriving before its add still
// leaves the graph whole.
func (g *Graph) Set(obj Object, remote bool) error {
	if obj.ID == "" {
		return fmt.Errorf("object id is required")
	}
	g.mu.Lock()
	_, exists := g.objects[obj.ID]
	g.objects[obj.ID] = obj
	if !exists {
		g.order = append(g.order, obj.ID)
	}
	g.mu.Unlock()
	kind := ChangeModified
	if !exists {
		kind = ChangeAdded
	}
	g.emit(kind, obj, remote)
	return nil
}

// Remove deletes an object. Removing an unknown id is a no-op.
func (g *Graph) Remove(id string, remote bool) {
	g.mu.Lock()
	obj, exists := g.objects[id]
	if !exists {
		g.mu.Unlock()
		return
	}
	delete(g.objects, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.mu.Unlock()
	g.emit(ChangeRemoved, obj, remote)
}

// Serialize captures the whole graph as a self-describing JSON tree.
func (g *Graph) Serialize() ([]byte, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return json.Marshal(snapshot{Version: snapshotVersion, Objects: g.objectsLocked()})
}

// Load replaces the graph content from serialized form. On a decode error the
// graph is left unchanged. Load never fires change events; callers that need
// to repaint do so wholesale after a load.
func (g *Graph) Load(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode scene snapshot: %w", err)
	}
	objects := make(map[string]Object, len(snap.Objects))
	order := make([]string, 0, len(snap.Objects))
	for _, obj := range snap.Objects {
		if obj.ID == "" {
			return fmt.Errorf("decode scene snapshot: object without id")
		}
		if _, dup := objects[obj.ID]; dup {
			return fmt.Errorf("decode scene snapshot: duplicate object id %s", obj.ID)
		}
		objects[obj.ID] = obj
		order = append(order, obj.ID)
	}
	g.mu.Lock()
	g.objects = objects
	g.order = order
	g.mu.Unlock()
	return nil
}

// Clear empties the graph without firing events.
func (g *Graph) Clear() {
	g.mu.Lock()
	g.objects = make(map[string]Object)
	g.order = nil
	g.mu.Unlock()
}
