package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	snapshotsDir = "snapshots"
	indexFile    = "index.json"
)

// Store persists snapshots under a root directory: one JSON document per
// snapshot plus an index for listing.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *Index
}

// NewStore creates or opens a snapshot store at the given directory.
func NewStore(rootDir string) (*Store, error) {
	s := &Store{rootDir: rootDir}

	if err := os.MkdirAll(filepath.Join(rootDir, snapshotsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	if err := s.loadIndex(); err != nil {
		s.index = &Index{
			Snapshots: []Summary{},
			UpdatedAt: time.Now(),
		}
	}
	return s, nil
}

// Save persists a snapshot. Saving an id that already exists overwrites it
// without duplicating the index entry.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapDir := filepath.Join(s.rootDir, snapshotsDir, snap.ID)
	if err := os.MkdirAll(snapDir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(snapDir, "snapshot.json"), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	found := false
	for i, summary := range s.index.Snapshots {
		if summary.ID == snap.ID {
			s.index.Snapshots[i] = snap.Summary()
			found = true
			break
		}
	}
	if !found {
		s.index.Snapshots = append(s.index.Snapshots, snap.Summary())
	}
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// Load retrieves a snapshot by ID.
func (s *Store) Load(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *Store) load(id string) (*Snapshot, error) {
	snapPath := filepath.Join(s.rootDir, snapshotsDir, id, "snapshot.json")
	data, err := os.ReadFile(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return &snap, nil
}

// List returns all snapshot summaries, newest first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Summary, len(s.index.Snapshots))
	copy(result, s.index.Snapshots)
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Latest returns the most recent snapshot for a project root, or an error if
// none exists.
func (s *Store) Latest(rootPath string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var best *Summary
	for i := range s.index.Snapshots {
		summary := &s.index.Snapshots[i]
		if summary.RootPath != rootPath {
			continue
		}
		if best == nil || summary.CreatedAt.After(best.CreatedAt) {
			best = summary
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no snapshot for %s", rootPath)
	}
	return s.load(best.ID)
}

// FindByTag returns the snapshot with the given tag.
func (s *Store) FindByTag(tag string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, summary := range s.index.Snapshots {
		if summary.Tag == tag {
			return s.load(summary.ID)
		}
	}
	return nil, fmt.Errorf("snapshot with tag %q not found", tag)
}

// Tag assigns a tag to a snapshot.
func (s *Store) Tag(id, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.load(id)
	if err != nil {
		return err
	}
	snap.Tag = tag

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	snapPath := filepath.Join(s.rootDir, snapshotsDir, id, "snapshot.json")
	if err := os.WriteFile(snapPath, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}

	for i, summary := range s.index.Snapshots {
		if summary.ID == id {
			s.index.Snapshots[i].Tag = tag
			break
		}
	}
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

// Delete removes a snapshot.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapDir := filepath.Join(s.rootDir, snapshotsDir, id)
	if err := os.RemoveAll(snapDir); err != nil {
		return fmt.Errorf("remove snapshot dir: %w", err)
	}

	filtered := s.index.Snapshots[:0]
	for _, summary := range s.index.Snapshots {
		if summary.ID != id {
			filtered = append(filtered, summary)
		}
	}
	s.index.Snapshots = filtered
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.rootDir, indexFile))
	if err != nil {
		return err
	}
	s.index = &Index{}
	return json.Unmarshal(data, s.index)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.rootDir, indexFile), data, 0o644)
}
