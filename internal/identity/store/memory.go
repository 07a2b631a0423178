// Package store provides identity record persistence.
package store

import (
	"context"
	"slices"
	"sync"

	"portrait/internal/identity/models"
	id "portrait/pkg/domain"
	"portrait/pkg/platform/sentinel"
)

// InMemoryStore keeps identity records in process memory. Ownership lists
// preserve acquisition order so primary reassignment picks the first
// remaining identity deterministically.
type InMemoryStore struct {
	mu      sync.RWMutex
	nextID  id.PortraitID
	records map[id.PortraitID]models.Identity
	owned   map[id.Address][]id.PortraitID
	primary map[id.Address]id.PortraitID
}

// NewMemory returns an empty in-memory identity store. The first allocated
// Portrait ID is 1; 0 is never issued.
func NewMemory() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		records: make(map[id.PortraitID]models.Identity),
		owned:   make(map[id.Address][]id.PortraitID),
		primary: make(map[id.Address]id.PortraitID),
	}
}

// Allocate issues the next sequential Portrait ID bound to owner.
func (s *InMemoryStore) Allocate(_ context.Context, owner id.Address) (id.PortraitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	portraitID := s.nextID
	s.nextID++
	s.records[portraitID] = models.Identity{ID: portraitID, Owner: owner}
	s.owned[owner] = append(s.owned[owner], portraitID)
	return portraitID, nil
}

// Discard removes an identity minted earlier in the same operation. The
// counter is not rewound, so the discarded ID is never reissued.
func (s *InMemoryStore) Discard(_ context.Context, portraitID id.PortraitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[portraitID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.records, portraitID)
	s.owned[rec.Owner] = slices.DeleteFunc(s.owned[rec.Owner], func(p id.PortraitID) bool { return p == portraitID })
	if len(s.owned[rec.Owner]) == 0 {
		delete(s.owned, rec.Owner)
	}
	return nil
}

// Get returns the identity record for portraitID.
func (s *InMemoryStore) Get(_ context.Context, portraitID id.PortraitID) (models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[portraitID]
	if !ok {
		return models.Identity{}, sentinel.ErrNotFound
	}
	return rec, nil
}

// SetOwner rebinds portraitID to owner and maintains both ownership lists.
func (s *InMemoryStore) SetOwner(_ context.Context, portraitID id.PortraitID, owner id.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[portraitID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if rec.Owner == owner {
		return nil
	}

	prev := rec.Owner
	s.owned[prev] = slices.DeleteFunc(s.owned[prev], func(p id.PortraitID) bool { return p == portraitID })
	if len(s.owned[prev]) == 0 {
		delete(s.owned, prev)
	}
	s.owned[owner] = append(s.owned[owner], portraitID)

	rec.Owner = owner
	s.records[portraitID] = rec
	return nil
}

// SetTokenized flips the tokenized flag for portraitID.
func (s *InMemoryStore) SetTokenized(_ context.Context, portraitID id.PortraitID, tokenized bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[portraitID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Tokenized = tokenized
	s.records[portraitID] = rec
	return nil
}

// IDsOf lists the Portrait IDs owned by owner, in acquisition order.
func (s *InMemoryStore) IDsOf(_ context.Context, owner id.Address) ([]id.PortraitID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.owned[owner]
	out := make([]id.PortraitID, len(ids))
	copy(out, ids)
	return out, nil
}

// Primary returns owner's primary Portrait ID, or 0 when none is set.
func (s *InMemoryStore) Primary(_ context.Context, owner id.Address) (id.PortraitID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.primary[owner], nil
}

// SetPrimary records owner's primary Portrait ID; 0 clears it.
func (s *InMemoryStore) SetPrimary(_ context.Context, owner id.Address, portraitID id.PortraitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if portraitID == 0 {
		delete(s.primary, owner)
		return nil
	}
	s.primary[owner] = portraitID
	return nil
}
