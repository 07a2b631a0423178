package store

import (
	"context"
	"sync"

	"portrait/internal/delegation/models"
	id "portrait/pkg/domain"
)

type pairKey struct {
	owner    id.Address
	delegate id.Address
}

// InMemoryStore keeps delegate records in process memory. It maintains the
// per-owner assigned counter on every save so the counter invariant holds by
// construction.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[pairKey]models.DelegateData
	counts  map[id.Address]int
}

// NewMemory returns an empty in-memory delegate store.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[pairKey]models.DelegateData),
		counts:  make(map[id.Address]int),
	}
}

// Get returns the stored record, or the zero record for unknown pairs.
func (s *InMemoryStore) Get(_ context.Context, owner, delegate id.Address) (models.DelegateData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[pairKey{owner, delegate}], nil
}

// Save upserts a record and adjusts the owner's assigned counter for the
// transition it represents.
func (s *InMemoryStore) Save(_ context.Context, owner, delegate id.Address, data models.DelegateData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{owner, delegate}
	prev := s.records[key]
	switch {
	case !prev.HasAssigned && data.HasAssigned:
		s.counts[owner]++
	case prev.HasAssigned && !data.HasAssigned:
		s.counts[owner]--
	}

	if data == (models.DelegateData{}) {
		delete(s.records, key)
		if s.counts[owner] == 0 {
			delete(s.counts, owner)
		}
		return nil
	}
	s.records[key] = data
	return nil
}

// AssignedCount returns the number of delegates the owner has assigned.
func (s *InMemoryStore) AssignedCount(_ context.Context, owner id.Address) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[owner], nil
}
