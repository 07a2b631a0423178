// Package pause provides the execution gate shared by every mutating registry
// entry point.
//
// Operations run as serialized transactions: Enter holds one mutual-exclusion
// slot for the full duration of an operation, including calls into
// collaborators, so read-modify-write sequences on counters always observe
// the previously committed state. The pause flag lets an administrator stop
// all mutations without tearing the process down.
package pause

import (
	"sync"
	"sync/atomic"

	dErrors "portrait/pkg/domain-errors"
)

// Switch combines the serialization lock with the administrative pause flag.
type Switch struct {
	mu     sync.Mutex
	paused atomic.Bool
}

// New returns an unpaused switch.
func New() *Switch {
	return &Switch{}
}

// Enter acquires the transaction slot. It fails without blocking when the
// registries are paused. Callers must invoke the returned release function
// exactly once.
func (s *Switch) Enter() (release func(), err error) {
	if s.paused.Load() {
		return nil, dErrors.New(dErrors.CodeInvalidAction, "registries are paused")
	}
	s.mu.Lock()
	// Re-check under the lock so a pause issued while waiting wins.
	if s.paused.Load() {
		s.mu.Unlock()
		return nil, dErrors.New(dErrors.CodeInvalidAction, "registries are paused")
	}
	return s.mu.Unlock, nil
}

// SetPaused flips the administrative pause flag.
func (s *Switch) SetPaused(paused bool) {
	s.paused.Store(paused)
}

// Paused reports the current pause state.
func (s *Switch) Paused() bool {
	return s.paused.Load()
}
