// Package token is a minimal token-shaped ownership mirror for tokenized
// identities. While an identity is tokenized the registry refuses plain
// transfers, and this mirror's transfer path becomes the only way ownership
// changes; it drives the identity registry's shared transfer routine so the
// two views cannot diverge.
package token

import (
	"context"
	"log/slog"
	"sync"

	"portrait/internal/identity/models"
	"portrait/internal/platform/pause"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// IdentityRegistry is the slice of the identity service the mirror drives.
type IdentityRegistry interface {
	Get(ctx context.Context, portraitID id.PortraitID) (models.Identity, error)
	OnTokenTransfer(ctx context.Context, from, to id.Address, portraitID id.PortraitID) error
}

// Mirror tracks per-token transfer approvals and forwards transfers into the
// identity registry.
type Mirror struct {
	gate     *pause.Switch
	identity IdentityRegistry
	logger   *slog.Logger

	mu       sync.Mutex
	approved map[id.PortraitID]id.Address
}

// New constructs the token mirror.
func New(identity IdentityRegistry, gate *pause.Switch, logger *slog.Logger) (*Mirror, error) {
	if identity == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "identity registry is required")
	}
	if gate == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pause gate is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mirror{
		gate:     gate,
		identity: identity,
		logger:   logger,
		approved: make(map[id.PortraitID]id.Address),
	}, nil
}

// OwnerOf returns the token owner, which is always the identity owner.
func (m *Mirror) OwnerOf(ctx context.Context, portraitID id.PortraitID) (id.Address, error) {
	rec, err := m.identity.Get(ctx, portraitID)
	if err != nil {
		return id.Address{}, err
	}
	if !rec.Tokenized {
		return id.Address{}, dErrors.Newf(dErrors.CodeInvalidAction, "portrait %s is not tokenized", portraitID)
	}
	return rec.Owner, nil
}

// Approve lets the token owner authorize one address to transfer the token.
// A zero spender clears the approval.
func (m *Mirror) Approve(ctx context.Context, caller id.Address, portraitID id.PortraitID, spender id.Address) error {
	owner, err := m.OwnerOf(ctx, portraitID)
	if err != nil {
		return err
	}
	if caller != owner {
		return dErrors.Newf(dErrors.CodeUnauthorized, "only the owner may approve transfers of portrait %s", portraitID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if spender.IsZero() {
		delete(m.approved, portraitID)
		return nil
	}
	m.approved[portraitID] = spender
	return nil
}

// TransferFrom moves the token, and with it the identity, from its owner to
// a new address. The caller must be the owner or the approved spender. A
// successful transfer consumes the approval.
func (m *Mirror) TransferFrom(ctx context.Context, caller, from, to id.Address, portraitID id.PortraitID) error {
	release, err := m.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	owner, err := m.OwnerOf(ctx, portraitID)
	if err != nil {
		return err
	}
	if from != owner {
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s does not own portrait %s", from, portraitID)
	}

	m.mu.Lock()
	approved := m.approved[portraitID]
	m.mu.Unlock()
	if caller != owner && caller != approved {
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s may not transfer portrait %s", caller, portraitID)
	}

	if err := m.identity.OnTokenTransfer(ctx, from, to, portraitID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.approved, portraitID)
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "token transfer applied",
		"portrait_id", portraitID.String(),
		"from", from.String(),
		"to", to.String(),
	)
	return nil
}
