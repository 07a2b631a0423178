// Package store provides team role record persistence.
package store

import (
	"context"
	"sync"

	"portrait/internal/team/models"
	id "portrait/pkg/domain"
)

type pairKey struct {
	teamID   id.PortraitID
	memberID id.PortraitID
}

// InMemoryStore keeps team role records in process memory. The per-team seat
// counter moves with hasAssigned transitions on every save, so it can never
// drift from the records.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]models.TeamRoleData
	seats   map[id.PortraitID]int
}

// NewMemory returns an empty in-memory team role store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[pairKey]models.TeamRoleData),
		seats:   make(map[id.PortraitID]int),
	}
}

// Get returns the stored record, or the zero record for unknown pairs.
func (s *InMemoryStore) Get(_ context.Context, teamID, memberID id.PortraitID) (models.TeamRoleData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[pairKey{teamID, memberID}], nil
}

// Save upserts a record and adjusts the team's seat counter for the
// transition it represents.
func (s *InMemoryStore) Save(_ context.Context, teamID, memberID id.PortraitID, data models.TeamRoleData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{teamID, memberID}
	prev := s.records[key]
	switch {
	case !prev.HasAssigned && data.HasAssigned:
		s.seats[teamID]++
	case prev.HasAssigned && !data.HasAssigned:
		s.seats[teamID]--
	}

	if data == (models.TeamRoleData{}) {
		delete(s.records, key)
		if s.seats[teamID] == 0 {
			delete(s.seats, teamID)
		}
		return nil
	}
	s.records[key] = data
	return nil
}

// SeatCount returns the number of assigned seats on the team.
func (s *InMemoryStore) SeatCount(_ context.Context, teamID id.PortraitID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seats[teamID], nil
}
