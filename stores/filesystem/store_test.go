package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"flowsmartly-studio/core"
)

func TestFilesystemStore_CRUD(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	d := &core.Design{
		ID: "d1", OwnerID: "u1", Name: "Poster", Width: 800, Height: 600,
		Pages: []core.Page{{ID: "p1", Snapshot: `{"version":1,"objects":[]}`, Width: 800, Height: 600}},
	}
	if err := s.Save(ctx, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Poster" || len(got.Pages) != 1 || got.Pages[0].Snapshot == "" {
		t.Errorf("got %+v, want round-tripped design", got)
	}
	if got.OwnerID != "u1" {
		t.Errorf("owner id = %q, want u1", got.OwnerID)
	}

	if err := s.Delete(ctx, "u1", "d1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "u1", "d1"); err == nil {
		t.Error("get after delete should fail")
	}
	// Deleting a missing file is treated as success.
	if err := s.Delete(ctx, "u1", "d1"); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestFilesystemStore_ListSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	ctx := context.Background()

	if err := s.Save(ctx, &core.Design{ID: "good", OwnerID: "u1", Name: "ok", Pages: []core.Page{{ID: "p1"}}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "u1", "broken"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	list, err := s.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "good" {
		t.Errorf("list = %+v, want only the readable design", list)
	}
	if len(list[0].Pages) != 0 {
		t.Error("list view should not carry pages")
	}
}

func TestFilesystemStore_ListUnknownOwnerIsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	list, err := s.List(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("list size = %d, want 0", len(list))
	}
}

func TestFilesystemStore_RejectsPathTraversal(t *testing.T) {
	s := NewStore(t.TempDir())
	ctx := context.Background()

	if _, err := s.Get(ctx, "u1", "../../escape"); err == nil {
		t.Error("get with traversal id should be rejected")
	}
	if err := s.Save(ctx, &core.Design{ID: "../../escape", OwnerID: "u1"}); err == nil {
		t.Error("save with traversal id should be rejected")
	}
	if err := s.Delete(ctx, "u1", "../../escape"); err == nil {
		t.Error("delete with traversal id should be rejected")
	}
}
