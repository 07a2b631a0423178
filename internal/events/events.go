// Package events defines the registry event model for off-chain indexing.
// Events carry the full post-state of the record they describe; they are
// observability output, never internal control flow.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "portrait/pkg/domain"
)

// Type names one registry event.
type Type string

const (
	TypeDelegateToggled        Type = "delegate_toggled"
	TypeDelegateRequestToggled Type = "delegate_request_toggled"
	TypeRoleToggled            Type = "team_role_toggled"
	TypeRoleRequestToggled     Type = "team_role_request_toggled"
	TypeIdentityRegistered     Type = "identity_registered"
	TypeIdentityTransferred    Type = "identity_transferred"
	TypePrimaryChanged         Type = "primary_changed"
	TypeIdentityTokenized      Type = "identity_tokenized"
	TypeSeatChanged            Type = "team_seat_changed"
	TypeNameReserved           Type = "name_reserved"
	TypePauseToggled           Type = "pause_toggled"
	TypeParamsChanged          Type = "params_changed"
)

// Event is one registry state change. Identifier fields are populated per
// type; post-state flags always reflect the record after the operation.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
	Client    string    `json:"client,omitempty"`

	PortraitID id.PortraitID `json:"portrait_id,omitempty"`
	TeamID     id.PortraitID `json:"team_id,omitempty"`
	MemberID   id.PortraitID `json:"member_id,omitempty"`

	Owner    string `json:"owner,omitempty"`
	Delegate string `json:"delegate,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`

	Role        string `json:"role,omitempty"`
	HasAssigned bool   `json:"has_assigned"`
	HasAccepted bool   `json:"has_accepted"`
	SeatCount   int    `json:"seat_count,omitempty"`
	Paused      bool   `json:"paused,omitempty"`
}

// Publisher emits registry events. Implementations must tolerate emission
// from inside a held transaction slot, so Emit never calls back into the
// registries.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists emitted events (memory for tests, postgres outbox for the
// Kafka pipeline).
type Store interface {
	Append(ctx context.Context, event Event) error
}

// NopPublisher discards events. Used when no pipeline is configured.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) error { return nil }
