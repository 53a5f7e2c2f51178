// Package history persists the bounded record of already-notified item
// ids used for deduplication across scan cycles.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"
)

// DefaultLimit caps how many entries survive a save. The store behaves
// as a bounded FIFO by first-seen time, not a true LRU.
const DefaultLimit = 5000

// snapshotName is the snapshot file written next to the rule file.
const snapshotName = "history.json"

// SnapshotPath derives the snapshot location as a sibling of the rule
// source file.
func SnapshotPath(rulePath string) string {
	return filepath.Join(filepath.Dir(rulePath), snapshotName)
}

// Store maps item id to the epoch-millisecond timestamp it was first
// recorded. It is used from the single scan goroutine only and needs
// no locking.
type Store struct {
	path    string
	limit   int
	entries map[string]int64
	logger  *zap.Logger
}

// Open loads the snapshot at path. A missing or corrupt snapshot is an
// empty history, never an error.
func Open(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		path:    path,
		limit:   DefaultLimit,
		entries: make(map[string]int64),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("history snapshot unreadable, starting empty", zap.Error(err))
		}
		return s
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Warn("history snapshot corrupt, starting empty",
			zap.String("path", path), zap.Error(err))
		s.entries = make(map[string]int64)
	}
	return s
}

// SetLimit overrides the trim limit. Intended for tests.
func (s *Store) SetLimit(n int) {
	if n > 0 {
		s.limit = n
	}
}

// Seen reports whether id has already been recorded.
func (s *Store) Seen(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// Record remembers id with its first-seen timestamp. Re-recording an
// existing id keeps the original timestamp.
func (s *Store) Record(id string, firstSeenMillis int64) {
	if _, ok := s.entries[id]; ok {
		return
	}
	s.entries[id] = firstSeenMillis
}

// Len returns the number of recorded ids.
func (s *Store) Len() int {
	return len(s.entries)
}

// Save trims the map to the newest limit entries by first-seen time,
// then writes the snapshot. The persisted file reflects exactly the
// in-memory map after trimming.
func (s *Store) Save() error {
	s.trim()

	data, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write history snapshot: %w", err)
	}
	return nil
}

// trim drops the oldest entries beyond the limit.
func (s *Store) trim() {
	if len(s.entries) <= s.limit {
		return
	}

	type entry struct {
		id string
		ts int64
	}
	all := make([]entry, 0, len(s.entries))
	for id, ts := range s.entries {
		all = append(all, entry{id: id, ts: ts})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts < all[j].ts })

	for _, old := range all[:len(all)-s.limit] {
		delete(s.entries, old.id)
	}
}
