// Package ports defines the delegation registry's storage and collaborator
// interfaces. Interfaces live here when more than one package consumes them.
package ports

import (
	"context"

	"portrait/internal/delegation/models"
	id "portrait/pkg/domain"
)

// Store persists delegate consent records. Get returns the zero record for
// unknown pairs; assigned counts always equal the number of records with
// HasAssigned set for the owner.
type Store interface {
	Get(ctx context.Context, owner, delegate id.Address) (models.DelegateData, error)
	Save(ctx context.Context, owner, delegate id.Address, data models.DelegateData) error
	AssignedCount(ctx context.Context, owner id.Address) (int, error)
}

// OwnerReader resolves portrait ownership. Implemented by the identity
// registry and bound after both services exist, mirroring the registries'
// refresh-pointers wiring.
type OwnerReader interface {
	OwnerOf(ctx context.Context, portraitID id.PortraitID) (id.Address, error)
}
