package memory

import (
	"context"
	"sync"

	"portrait/internal/events"
)

// Store keeps emitted events in memory for tests and single-process runs.
type Store struct {
	mu     sync.RWMutex
	events []events.Event
}

// New returns an empty in-memory event store.
func New() *Store {
	return &Store{}
}

// Append records one event.
func (s *Store) Append(_ context.Context, event events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// List returns a snapshot of all recorded events in append order.
func (s *Store) List() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns recorded events of one type, in append order.
func (s *Store) ByType(t events.Type) []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []events.Event
	for _, event := range s.events {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}
