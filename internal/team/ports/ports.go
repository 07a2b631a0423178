// Package ports declares the interfaces the team service depends on.
package ports

import (
	"context"

	"portrait/internal/team/models"
	id "portrait/pkg/domain"
)

//go:generate mockgen -source=ports.go -destination=../mocks/ports_mock.go -package=mocks

// Store persists team role records and maintains the per-team seat count in
// lockstep with hasAssigned transitions.
type Store interface {
	Get(ctx context.Context, teamID, memberID id.PortraitID) (models.TeamRoleData, error)
	Save(ctx context.Context, teamID, memberID id.PortraitID, data models.TeamRoleData) error
	SeatCount(ctx context.Context, teamID id.PortraitID) (int, error)
}

// PlanChecker answers whether a team identity currently holds a team plan.
type PlanChecker interface {
	IsTeamPlan(ctx context.Context, teamID id.PortraitID) (bool, error)
}

// SeatAccountant receives seat transitions so the billing collaborator can
// reapportion the team's subscription expiration. The formula stays behind
// this boundary.
type SeatAccountant interface {
	SeatsChanged(ctx context.Context, teamID id.PortraitID, delta, seats int) error
}

// Authorizer resolves "may caller act for this identity" through the
// delegation and identity registries.
type Authorizer interface {
	IsDelegateOrOwnerOfPortraitID(ctx context.Context, portraitID id.PortraitID, caller id.Address) (bool, error)
}
