// Package state persists the traversal resume snapshot. The walker
// saves after every completed node, so a crashed or cancelled run can
// pick up from the last completed path instead of depth zero. A
// finished run, successful or failed, clears the snapshot: there is
// nothing left to resume.
package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/canopy/pkg/model"
)

// Store is the persistence contract the walker calls.
type Store interface {
	// Save writes the snapshot, replacing any previous one.
	Save(snap model.Snapshot) error

	// Load returns the persisted snapshot, or (nil, nil) when none
	// exists.
	Load() (*model.Snapshot, error)

	// Clear removes the snapshot.
	Clear() error
}

// File is the JSON-file Store. Writes are atomic (temp file + rename)
// so a crash mid-save never leaves a corrupt snapshot behind.
type File struct {
	path string
}

// NewFile creates a file store at the given path, creating parent
// directories on first save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the snapshot file path.
func (f *File) Path() string {
	return f.path
}

// Save implements Store.
func (f *File) Save(snap model.Snapshot) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Load implements Store.
func (f *File) Load() (*model.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}
	return &snap, nil
}

// Clear implements Store.
func (f *File) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing snapshot: %w", err)
	}
	return nil
}

var _ Store = (*File)(nil)

// Memory is an in-process Store for tests and embedders that manage
// persistence themselves.
type Memory struct {
	snap *model.Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Save implements Store.
func (m *Memory) Save(snap model.Snapshot) error {
	copied := snap
	copied.LastCompletedPath = append([]string(nil), snap.LastCompletedPath...)
	m.snap = &copied
	return nil
}

// Load implements Store.
func (m *Memory) Load() (*model.Snapshot, error) {
	if m.snap == nil {
		return nil, nil
	}
	copied := *m.snap
	return &copied, nil
}

// Clear implements Store.
func (m *Memory) Clear() error {
	m.snap = nil
	return nil
}

var _ Store = (*Memory)(nil)
