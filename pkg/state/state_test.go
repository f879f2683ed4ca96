package state_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/canopy/pkg/model"
	"github.com/vanderheijden86/canopy/pkg/state"
)

func sampleSnapshot() model.Snapshot {
	return model.SnapshotOf(model.TraversalState{
		InProgress:         true,
		AggregateLeafCount: 17,
		LastCompletedPath:  []string{"Library", "Rock"},
	})
}

func TestFile_SaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traversal.json")
	store := state.NewFile(path)

	// Nothing saved yet: absent, not an error.
	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if snap != nil {
		t.Fatalf("Load on empty store = %+v, want nil", snap)
	}

	want := sampleSnapshot()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	snap, err = store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap == nil || !snap.InProgress || snap.AggregateLeafCount != 17 {
		t.Fatalf("Load = %+v", snap)
	}
	if model.PathKey(snap.LastCompletedPath) != "Library/Rock" {
		t.Errorf("LastCompletedPath = %v", snap.LastCompletedPath)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if snap, _ := store.Load(); snap != nil {
		t.Errorf("Load after Clear = %+v, want nil", snap)
	}

	// Clearing an already-clear store is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
}

func TestFile_SaveReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := state.NewFile(filepath.Join(dir, "traversal.json"))

	first := sampleSnapshot()
	if err := store.Save(first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second := sampleSnapshot()
	second.AggregateLeafCount = 99
	if err := store.Save(second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	snap, err := store.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snap.AggregateLeafCount != 99 {
		t.Errorf("AggregateLeafCount = %d, want 99 (latest save wins)", snap.AggregateLeafCount)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".snapshot-") {
			t.Errorf("temp file %q left behind", e.Name())
		}
	}
}

func TestFile_LoadRejectsCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traversal.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := state.NewFile(path).Load(); err == nil {
		t.Error("Load accepted corrupt snapshot")
	}
}

func TestMemory_SaveLoadClear(t *testing.T) {
	store := state.NewMemory()

	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("Load on empty store = %+v, %v", snap, err)
	}

	want := sampleSnapshot()
	if err := store.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The stored snapshot must not alias the caller's path slice.
	want.LastCompletedPath[0] = "mutated"
	snap, _ := store.Load()
	if snap.LastCompletedPath[0] != "Library" {
		t.Error("stored snapshot aliases caller's slice")
	}

	store.Clear()
	if snap, _ := store.Load(); snap != nil {
		t.Errorf("Load after Clear = %+v", snap)
	}
}
