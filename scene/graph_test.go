package scene

import (
	"fmt"
	"testing"
)

func TestGraph_AddRejectsDuplicatesAndEmptyIDs(t *testing.T) {
	g := NewGraph()
	if err := g.Add(Object{Kind: KindRectangle}, false); err == nil {
		t.Error("add without id should fail")
	}
	if err := g.Add(Object{ID: "a", Kind: KindRectangle}, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Add(Object{ID: "a", Kind: KindEllipse}, false); err == nil {
		t.Error("duplicate add should fail")
	}
	if g.Len() != 1 {
		t.Errorf("len = %d, want 1", g.Len())
	}
}

func TestGraph_SetUpsertsUnknownIDs(t *testing.T) {
	g := NewGraph()
	if err := g.Set(Object{ID: "a", X: 1}, false); err != nil {
		t.Fatalf("set on empty graph: %v", err)
	}
	if err := g.Set(Object{ID: "a", X: 2}, false); err != nil {
		t.Fatalf("set existing: %v", err)
	}
	got, _ := g.Get("a")
	if got.X != 2 {
		t.Errorf("X = %v, want 2", got.X)
	}
	if g.Len() != 1 {
		t.Errorf("len = %d, want 1", g.Len())
	}
}

func TestGraph_SetPreservesPaintOrder(t *testing.T) {
	g := NewGraph()
	for _, id := range []string{"a", "b", "c"} {
		if err := g.Add(Object{ID: id}, false); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}
	if err := g.Set(Object{ID: "a", X: 9}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	objs := g.Objects()
	if objs[0].ID != "a" || objs[1].ID != "b" || objs[2].ID != "c" {
		t.Errorf("order after set = %v, want a,b,c", []string{objs[0].ID, objs[1].ID, objs[2].ID})
	}
}

func TestGraph_RemoveUnknownIsNoop(t *testing.T) {
	g := NewGraph()
	fired := false
	g.OnChange(func(ChangeKind, Object, bool) { fired = true })
	g.Remove("ghost", false)
	if fired {
		t.Error("removing an unknown id should not emit a change")
	}
}

func TestGraph_SerializeLoadRoundTrip(t *testing.T) {
	g := NewGraph()
	objs := []Object{
		{ID: "a", Kind: KindRectangle, X: 1, Y: 2, Width: 3, Height: 4, Fill: "#fff"},
		{ID: "b", Kind: KindTextbox, Text: "hello", Rotation: 45},
		{ID: "c", Kind: KindGroup, Children: []Object{{ID: "c1", Kind: KindLine}}},
	}
	for _, o := range objs {
		if err := g.Add(o, false); err != nil {
			t.Fatalf("add %s: %v", o.ID, err)
		}
	}

	data, err := g.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	restored := NewGraph()
	if err := restored.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}

	got := restored.Objects()
	if len(got) != len(objs) {
		t.Fatalf("got %d objects, want %d", len(got), len(objs))
	}
	for i, want := range objs {
		if got[i].ID != want.ID {
			t.Errorf("object %d id = %q, want %q (paint order must survive)", i, got[i].ID, want.ID)
		}
	}
	if b, _ := restored.Get("b"); b.Text != "hello" || b.Rotation != 45 {
		t.Errorf("textbox round-trip = %+v", b)
	}
	if c, _ := restored.Get("c"); len(c.Children) != 1 || c.Children[0].ID != "c1" {
		t.Errorf("group children round-trip = %+v", c.Children)
	}
}

func TestGraph_LoadFailureLeavesGraphUnchanged(t *testing.T) {
	g := NewGraph()
	if err := g.Add(Object{ID: "keep"}, false); err != nil {
		t.Fatalf("add: %v", err)
	}

	for name, data := range map[string]string{
		"malformed": `{not json`,
		"empty id":  `{"version":1,"objects":[{"id":""}]}`,
		"duplicate": `{"version":1,"objects":[{"id":"x"},{"id":"x"}]}`,
	} {
		if err := g.Load([]byte(data)); err == nil {
			t.Errorf("%s: load should fail", name)
		}
		if _, ok := g.Get("keep"); !ok || g.Len() != 1 {
			t.Errorf("%s: failed load must leave the graph unchanged", name)
		}
	}
}

func TestGraph_LoadNeverEmitsEvents(t *testing.T) {
	g := NewGraph()
	if err := g.Add(Object{ID: "a"}, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	data, err := g.Serialize()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	events := 0
	g.OnChange(func(ChangeKind, Object, bool) { events++ })
	if err := g.Load(data); err != nil {
		t.Fatalf("load: %v", err)
	}
	if events != 0 {
		t.Errorf("load emitted %d events, want 0", events)
	}
}

func TestGraph_EventsCarryKindAndRemoteFlag(t *testing.T) {
	g := NewGraph()
	type event struct {
		kind   ChangeKind
		id     string
		remote bool
	}
	var seen []event
	g.OnChange(func(k ChangeKind, o Object, remote bool) {
		seen = append(seen, event{k, o.ID, remote})
	})

	if err := g.Add(Object{ID: "a"}, false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.Set(Object{ID: "a", X: 1}, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	g.Remove("a", false)

	want := []event{
		{ChangeAdded, "a", false},
		{ChangeModified, "a", true},
		{ChangeRemoved, "a", false},
	}
	if len(seen) != len(want) {
		t.Fatalf("got %d events, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, seen[i], want[i])
		}
	}
}

func TestGraph_SerializeIsSafeDuringMutation(t *testing.T) {
	g := NewGraph()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			if _, err := g.Serialize(); err != nil {
				t.Errorf("serialize: %v", err)
				return
			}
			g.Objects()
		}
	}()
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("o%d", i)
		if err := g.Add(Object{ID: id, Kind: KindRectangle, X: float64(i)}, false); err != nil {
			t.Fatalf("add: %v", err)
		}
		g.Remove(id, false)
	}
	<-done
}

func TestObject_CloneIsDeep(t *testing.T) {
	orig := Object{ID: "g", Kind: KindGroup, Children: []Object{{ID: "c1", X: 1}}}
	c := orig.Clone()
	c.Children[0].X = 99
	if orig.Children[0].X != 1 {
		t.Error("mutating a clone's children must not touch the original")
	}
}
