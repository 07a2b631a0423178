// Package naming holds pre-registration name reservations. The identity
// registry hands a reservation to its owner during registration; resolution
// of the underlying name happens off this service.
package naming

import (
	"context"
	"log/slog"
	"sync"

	"portrait/internal/events"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// Registry maps name hashes to the address that reserved them.
type Registry struct {
	mu           sync.RWMutex
	reservations map[id.Hash]id.Address
	events       events.Publisher
	logger       *slog.Logger
}

type Option func(*Registry)

func WithPublisher(publisher events.Publisher) Option {
	return func(r *Registry) { r.events = publisher }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New returns an empty naming registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		reservations: make(map[id.Hash]id.Address),
		events:       events.NopPublisher{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReserveName records the reservation of nameHash for reserver. Reserving an
// already-reserved hash fails, including for the same reserver.
func (r *Registry) ReserveName(ctx context.Context, nameHash id.Hash, reserver id.Address) error {
	if nameHash.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "name hash is required")
	}
	if reserver.IsZero() {
		return dErrors.New(dErrors.CodeInvalidAddress, "reserver is required")
	}

	r.mu.Lock()
	if _, taken := r.reservations[nameHash]; taken {
		r.mu.Unlock()
		return dErrors.New(dErrors.CodeDuplicateReservation, "name already reserved")
	}
	r.reservations[nameHash] = reserver
	r.mu.Unlock()

	if err := r.events.Emit(ctx, events.Event{
		Type:  events.TypeNameReserved,
		Owner: reserver.String(),
	}); err != nil {
		r.logger.ErrorContext(ctx, "event emission failed", "error", err)
	}
	return nil
}

// ReserverOf returns the reserver of nameHash, if any.
func (r *Registry) ReserverOf(_ context.Context, nameHash id.Hash) (id.Address, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reserver, ok := r.reservations[nameHash]
	return reserver, ok
}
