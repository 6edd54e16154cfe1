package library

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
)

// Store persists whole LibraryState snapshots. Load on a fresh location
// returns an empty state; Save must be retry-safe (writing the same
// snapshot twice is harmless).
type Store interface {
	Load() (*LibraryState, error)
	Save(state *LibraryState) error
}

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// JSONStore keeps the snapshot in a single JSON file.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store writing to path. The file and its directory
// are created on first save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Load reads and validates the snapshot. A missing file is not an error.
func (s *JSONStore) Load() (*LibraryState, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewLibraryState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	state := NewLibraryState()
	if err := snapshotJSON.Unmarshal(raw, state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := state.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}
	return state, nil
}

// Save writes the snapshot to a temp file and renames it into place, so a
// failed write never leaves a truncated snapshot behind.
func (s *JSONStore) Save(state *LibraryState) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	raw, err := snapshotJSON.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
