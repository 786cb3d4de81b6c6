package series

import (
	"fmt"
	"sort"
	"sync"

	"lod-engine/src/logger"
	"lod-engine/src/models"
)

// -----------------------------------------------------------------------------
// Store keeps the current snapshot of every defined series.
// -----------------------------------------------------------------------------

type Store struct {
	snapshots map[string]*models.MSeriesSnapshot
	retired   map[string]uint64 // last version of deleted series
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewStore(log *logger.Logger) *Store {
	if log == nil {
		log = logger.NewLogger(nil, "SeriesStore")
	}
	return &Store{
		snapshots: make(map[string]*models.MSeriesSnapshot),
		retired:   make(map[string]uint64),
		Logger:    log,
	}
}

// -----------------------------------------------------------------------------

// Define registers an empty series. Redefining with the same kind is a no-op.
// A series deleted earlier resumes after its last version so cache keys of
// the old data never match the new one.
func (s *Store) Define(id string, kind models.MSeriesKind) (*models.MSeriesSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.snapshots[id]; ok {
		if cur.Kind != kind {
			return nil, fmt.Errorf("series %s already defined as %s", id, cur.Kind)
		}
		return cur, nil
	}
	snap := NewSnapshot(id, kind, nil)
	if last, ok := s.retired[id]; ok {
		snap.Version = last + 1
		delete(s.retired, id)
	}
	s.snapshots[id] = snap
	s.Logger.Debug("Defined series %s (%s)", id, kind)
	return snap, nil
}

// -----------------------------------------------------------------------------

// Get returns the current snapshot
func (s *Store) Get(id string) (*models.MSeriesSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[id]
	return snap, ok
}

// -----------------------------------------------------------------------------

// Mutate swaps the snapshot of id for fn(current). fn must return a new value.
func (s *Store) Mutate(id string, fn func(*models.MSeriesSnapshot) (*models.MSeriesSnapshot, bool)) (*models.MSeriesSnapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.snapshots[id]
	if !ok {
		return nil, false, fmt.Errorf("series %s not found", id)
	}
	next, changed := fn(cur)
	if !changed {
		return cur, false, nil
	}
	s.snapshots[id] = next
	return next, true, nil
}

// -----------------------------------------------------------------------------

// Delete drops a series
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.snapshots[id]; ok {
		s.retired[id] = cur.Version
		delete(s.snapshots, id)
	}
}

// -----------------------------------------------------------------------------

// IDs returns the defined series ids, sorted
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// -----------------------------------------------------------------------------

// TotalPoints sums the lengths of all snapshots
func (s *Store) TotalPoints() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, snap := range s.snapshots {
		total += snap.Len()
	}
	return total
}

// -----------------------------------------------------------------------------

// Count returns the number of series
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.snapshots)
}

// -----------------------------------------------------------------------------

// Cleanup drops every series, keeping their versions retired
func (s *Store) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, snap := range s.snapshots {
		s.retired[id] = snap.Version
	}
	s.snapshots = make(map[string]*models.MSeriesSnapshot)
}
