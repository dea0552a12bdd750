package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FSStore keeps snapshots under <baseDir>/designs/<id>/:
//
//	design.json    the snapshot
//	trace.jsonl    one line per refinement iteration
//	spectrum.json.zst
//
// Writes go through a temporary file and a rename, so concurrent readers
// see either the old or the new snapshot.
type FSStore struct {
	baseDir string
}

// NewFSStore creates the base directory if needed.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FSStore) BaseDir() string { return fs.baseDir }

func designDir(baseDir, id string) string {
	return filepath.Join(baseDir, "designs", id)
}

func (fs *FSStore) designPath(id string) string {
	return filepath.Join(designDir(fs.baseDir, id), "design.json")
}

// writeAtomic writes data to path through path.tmp and a rename.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create design directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// SaveDesign validates and atomically writes a snapshot.
func (fs *FSStore) SaveDesign(id string, s *Snapshot) error {
	if id == "" {
		return fmt.Errorf("design id cannot be empty")
	}
	if s == nil {
		return fmt.Errorf("snapshot cannot be nil")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid snapshot: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	path := fs.designPath(id)
	if err := writeAtomic(path, data); err != nil {
		return err
	}
	slog.Debug("Design saved", "id", id, "path", path)
	return nil
}

// LoadDesign reads a snapshot.
func (fs *FSStore) LoadDesign(id string) (*Snapshot, error) {
	if id == "" {
		return nil, fmt.Errorf("design id cannot be empty")
	}
	path := fs.designPath(id)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to deserialize snapshot: %w", err)
	}
	slog.Debug("Design loaded", "id", id, "path", path)
	return &s, nil
}

// ListDesigns returns snapshot metadata, newest first. Unreadable
// snapshots are skipped with a warning.
func (fs *FSStore) ListDesigns() ([]SnapshotInfo, error) {
	dir := filepath.Join(fs.baseDir, "designs")
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []SnapshotInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read designs directory: %w", err)
	}

	infos := []SnapshotInfo{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(fs.designPath(id)); os.IsNotExist(err) {
			continue
		}
		s, err := fs.LoadDesign(id)
		if err != nil {
			slog.Warn("Failed to load design for listing", "id", id, "error", err)
			continue
		}
		infos = append(infos, s.ToInfo())
	}
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Timestamp.After(infos[j].Timestamp) })
	slog.Debug("Listed designs", "count", len(infos))
	return infos, nil
}

// DeleteDesign removes the design directory with every artifact in it.
func (fs *FSStore) DeleteDesign(id string) error {
	if id == "" {
		return fmt.Errorf("design id cannot be empty")
	}
	dir := designDir(fs.baseDir, id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat design directory: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove design directory: %w", err)
	}
	slog.Debug("Design deleted", "id", id, "path", dir)
	return nil
}
