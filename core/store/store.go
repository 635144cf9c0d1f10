// Package store owns the mutable per-entity schedule grids and submission
// statuses for the lifetime of the hosting service. No other component keeps
// its own copy: grids never leave the store as pointers, callers read
// snapshots and write through SetCell so every access holds the store lock.
package store

import (
	"sync"

	"github.com/lmichel/tonectl/core/schedule"
	"github.com/lmichel/tonectl/core/submit"
)

// Store caches one grid and one submission status per resolved entity
// identifier. Grids are hydrated from raw planning entries on first access
// and stay mutable until the store is discarded; entries are never deleted.
type Store struct {
	mu       sync.RWMutex
	grids    map[string]*schedule.Grid
	statuses map[string]submit.Status
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		grids:    make(map[string]*schedule.Grid),
		statuses: make(map[string]submit.Status),
	}
}

// Hydrate decodes raw into the entity's grid on first access. Once a grid
// exists later calls are no-ops regardless of raw, so user edits survive
// refresh cycles.
func (s *Store) Hydrate(entityID string, raw []schedule.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grids[entityID]; ok {
		return
	}
	g := schedule.Decode(raw)
	s.grids[entityID] = &g
}

// Snapshot returns a copy of the entity's grid taken under the store lock,
// or ok=false when the entity has never been hydrated.
func (s *Store) Snapshot(entityID string) (schedule.Grid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grids[entityID]
	if !ok {
		return schedule.Grid{}, false
	}
	return *g, true
}

// Invalidate drops the cached grid for the entity so the next Hydrate call
// re-decodes from raw planning data.
func (s *Store) Invalidate(entityID string) {
	s.mu.Lock()
	delete(s.grids, entityID)
	s.mu.Unlock()
}

// SetCell mutates one cell of the cached grid. It reports false when the
// entity has no cached grid or the position is out of range.
func (s *Store) SetCell(entityID string, day, hour int, mode byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grids[entityID]
	if !ok {
		return false
	}
	return g.Set(day, hour, mode)
}

// Status returns the submission status for the entity, creating the default
// on first read.
func (s *Store) Status(entityID string) submit.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[entityID]
	if !ok {
		st = submit.DefaultStatus()
		s.statuses[entityID] = st
	}
	return st
}

// SetStatus overwrites the submission status for the entity.
func (s *Store) SetStatus(entityID string, st submit.Status) {
	s.mu.Lock()
	s.statuses[entityID] = st
	s.mu.Unlock()
}

// Entities lists every identifier the store currently tracks a grid for.
func (s *Store) Entities() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.grids))
	for id := range s.grids {
		ids = append(ids, id)
	}
	return ids
}
