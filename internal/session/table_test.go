package session_test

import (
	"testing"

	"github.com/dantte-lp/pimesh/internal/session"
)

func TestPutGetRemove(t *testing.T) {
	t.Parallel()

	tbl := session.NewTable()
	tbl.Put(session.Info{ID: "s1", Name: "lucky-otter"})

	info, ok := tbl.Get("s1")
	if !ok || info.Name != "lucky-otter" {
		t.Fatalf("Get(s1) = %+v, %v", info, ok)
	}

	removed, ok := tbl.Remove("s1")
	if !ok || removed.ID != "s1" {
		t.Fatalf("Remove(s1) = %+v, %v", removed, ok)
	}
	if tbl.Has("s1") {
		t.Fatal("s1 still present after Remove")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	t.Parallel()

	tbl := session.NewTable()
	tbl.Put(session.Info{ID: "s1"})
	tbl.Put(session.Info{ID: "s2"})

	snap := tbl.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot length = %d, want 2", len(snap))
	}

	tbl.Put(session.Info{ID: "s3"})
	if len(snap) != 2 {
		t.Fatal("Snapshot mutated by later Put")
	}
}

func TestClearReturnsRemovedIDs(t *testing.T) {
	t.Parallel()

	tbl := session.NewTable()
	tbl.Put(session.Info{ID: "s1"})
	tbl.Put(session.Info{ID: "s2"})

	ids := tbl.Clear()
	if len(ids) != 2 {
		t.Fatalf("Clear returned %d ids, want 2", len(ids))
	}
	if tbl.Len() != 0 {
		t.Fatal("table not empty after Clear")
	}
}
