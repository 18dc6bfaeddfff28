package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	snapshotsDir = "snapshots"
	indexFile    = "index.json"
)

// Store keeps snapshots as JSON files under a root directory.
type Store struct {
	mu      sync.RWMutex
	rootDir string
	index   *SnapshotIndex
}

// NewStore creates or opens a snapshot store at the given directory.
func NewStore(rootDir string) (*Store, error) {
	s := &Store{rootDir: rootDir}

	dir := filepath.Join(rootDir, snapshotsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", dir, err)
	}

	if err := s.loadIndex(); err != nil {
		s.index = &SnapshotIndex{
			Snapshots: []SnapshotSummary{},
			UpdatedAt: time.Now(),
		}
	}
	return s, nil
}

func (s *Store) snapshotPath(id string) string {
	return filepath.Join(s.rootDir, snapshotsDir, id+".json")
}

// Save persists a snapshot.
func (s *Store) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(snap); err != nil {
		return err
	}
	s.index.Snapshots = append(s.index.Snapshots, snap.Summary())
	s.index.UpdatedAt = time.Now()
	return s.saveIndex()
}

func (s *Store) write(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := writeFileAtomic(s.snapshotPath(snap.ID), data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// writeFileAtomic replaces path through a temporary file in the same
// directory so readers never see a partial write.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load retrieves a snapshot by ID.
func (s *Store) Load(id string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *Store) load(id string) (*Snapshot, error) {
	data, err := os.ReadFile(s.snapshotPath(id))
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", id, err)
	}
	snap, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %s: %w", id, err)
	}
	return snap, nil
}

// List returns all snapshot summaries, newest first.
func (s *Store) List() []SnapshotSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]SnapshotSummary, len(s.index.Snapshots))
	copy(result, s.index.Snapshots)

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// Find resolves ref as a snapshot id, a unique id prefix of at least four
// characters, then as a tag. The newest snapshot carrying the tag wins.
func (s *Store) Find(ref string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		tagged   *SnapshotSummary
		prefixed []string
	)
	for i, summary := range s.index.Snapshots {
		switch {
		case summary.ID == ref:
			return s.load(ref)
		case len(ref) >= 4 && strings.HasPrefix(summary.ID, ref):
			prefixed = append(prefixed, summary.ID)
		}
		if summary.Tag == ref && (tagged == nil || summary.CreatedAt.After(tagged.CreatedAt)) {
			tagged = &s.index.Snapshots[i]
		}
	}
	if len(prefixed) > 1 {
		return nil, fmt.Errorf("snapshot prefix %q is ambiguous: %s", ref, strings.Join(prefixed, ", "))
	}
	if len(prefixed) == 1 {
		return s.load(prefixed[0])
	}
	if tagged != nil {
		return s.load(tagged.ID)
	}
	return nil, fmt.Errorf("snapshot %q not found", ref)
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
	if err := s.write(snap); err != nil {
		return err
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

	if err := os.Remove(s.snapshotPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove snapshot: %w", err)
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
	s.index = &SnapshotIndex{}
	return json.Unmarshal(data, s.index)
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.rootDir, indexFile), data)
}
