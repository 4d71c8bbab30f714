// Package file provides the JSON-document ConfigStore. Every mutation
// rewrites the whole file: marshal, write to a temp path, fsync, rename.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/concordia-bot/concordia/internal/guild/store"
)

// Store is a file-backed ConfigStore. It keeps the decoded snapshot in
// memory; the file is the source of truth across restarts.
type Store struct {
	path  string
	clock func() time.Time

	mu   sync.Mutex
	snap store.Snapshot
}

// Open opens the store at the provided path. On first run it initializes an
// empty snapshot and persists it before returning.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("store path is required")
	}

	s := &Store{
		path:  filepath.Clean(path),
		clock: time.Now,
	}

	payload, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.snap = store.Snapshot{
			Current:  store.NewState(),
			Historic: []store.HistoryEntry{},
		}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	if err := json.Unmarshal(payload, &s.snap); err != nil {
		return nil, fmt.Errorf("decode snapshot file: %w", err)
	}
	return s, nil
}

// Load returns a deep copy of the stored snapshot.
func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLocked(), nil
}

// Save archives the new state and replaces the current one. The incoming
// state is deep-copied before the write so a caller mutating it afterwards
// cannot corrupt the history. The history entry is appended atomically with
// the current-state overwrite: both land in the same file replace.
func (s *Store) Save(ctx context.Context, current store.State, baseRevision uint64) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if baseRevision != s.snap.Revision {
		return store.Snapshot{}, fmt.Errorf("save at revision %d, stored revision %d: %w",
			baseRevision, s.snap.Revision, store.ErrStaleRevision)
	}

	previous := s.snap
	s.snap = store.Snapshot{
		Revision: previous.Revision + 1,
		Current:  current.Clone(),
		Historic: append(previous.Historic, store.HistoryEntry{
			Timestamp: s.clock().UTC(),
			State:     current.Clone(),
		}),
	}

	if err := s.persistLocked(); err != nil {
		s.snap = previous
		return store.Snapshot{}, err
	}
	return s.copyLocked(), nil
}

func (s *Store) copyLocked() store.Snapshot {
	out := store.Snapshot{
		Revision: s.snap.Revision,
		Current:  s.snap.Current.Clone(),
		Historic: make([]store.HistoryEntry, len(s.snap.Historic)),
	}
	for i, entry := range s.snap.Historic {
		out.Historic[i] = store.HistoryEntry{
			Timestamp: entry.Timestamp,
			State:     entry.State.Clone(),
		}
	}
	return out
}

// persistLocked replaces the snapshot file atomically: write a temp file in
// the same directory, fsync it, then rename over the target.
func (s *Store) persistLocked() error {
	payload, err := json.Marshal(s.snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp snapshot file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("sync temp snapshot file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp snapshot file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace snapshot file: %w", err)
	}
	return nil
}
