// Package ports declares the interfaces the identity service depends on.
package ports

import (
	"context"

	delegationModel "portrait/internal/delegation/models"
	"portrait/internal/identity/models"
	id "portrait/pkg/domain"
)

// Store persists identity records. Implementations return
// sentinel.ErrNotFound for unknown Portrait IDs; the service translates.
type Store interface {
	// Allocate issues the next sequential Portrait ID bound to owner.
	Allocate(ctx context.Context, owner id.Address) (id.PortraitID, error)

	// Discard removes an identity minted earlier in the same operation so a
	// failed registration commits nothing. The ID is never reissued.
	Discard(ctx context.Context, portraitID id.PortraitID) error

	// Get returns the identity record for portraitID.
	Get(ctx context.Context, portraitID id.PortraitID) (models.Identity, error)

	// SetOwner rebinds portraitID to owner and maintains both ownership
	// lists.
	SetOwner(ctx context.Context, portraitID id.PortraitID, owner id.Address) error

	// SetTokenized flips the tokenized flag for portraitID.
	SetTokenized(ctx context.Context, portraitID id.PortraitID, tokenized bool) error

	// IDsOf lists the Portrait IDs owned by owner, in acquisition order.
	IDsOf(ctx context.Context, owner id.Address) ([]id.PortraitID, error)

	// Primary returns owner's primary Portrait ID, or 0 when none is set.
	Primary(ctx context.Context, owner id.Address) (id.PortraitID, error)

	// SetPrimary records owner's primary Portrait ID; 0 clears it.
	SetPrimary(ctx context.Context, owner id.Address, portraitID id.PortraitID) error
}

// DelegationRegistry is the slice of the delegation service the identity
// registry consumes: authorization checks plus the registration-time
// assignment bypass and its unwind.
type DelegationRegistry interface {
	IsDelegateOfAddress(ctx context.Context, owner, delegate id.Address) (bool, error)

	// AssignOnRegistration assigns delegate for owner; the bool reports
	// whether this call created the assignment.
	AssignOnRegistration(ctx context.Context, owner, delegate id.Address) (delegationModel.DelegateData, bool, error)

	// UnassignOnRegistration reverses an assignment made for a registration
	// that later failed.
	UnassignOnRegistration(ctx context.Context, owner, delegate id.Address) error
}

// NameReserver hands a pre-registration name reservation to its owner.
type NameReserver interface {
	ReserveName(ctx context.Context, nameHash id.Hash, reserver id.Address) error
}
