package plan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func TestRegistry_IsTeamPlan(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := New(WithClock(fixedClock(now)))
	teamID := id.PortraitID(5)

	isTeam, err := r.IsTeamPlan(ctx, teamID)
	require.NoError(t, err)
	assert.False(t, isTeam, "unknown portraits are on the free plan")

	require.NoError(t, r.SetPlan(ctx, teamID, PlanTeam, now.Add(30*24*time.Hour)))
	isTeam, err = r.IsTeamPlan(ctx, teamID)
	require.NoError(t, err)
	assert.True(t, isTeam)

	// A personal plan is not a team plan.
	personal := id.PortraitID(6)
	require.NoError(t, r.SetPlan(ctx, personal, PlanPersonal, now.Add(time.Hour)))
	isTeam, err = r.IsTeamPlan(ctx, personal)
	require.NoError(t, err)
	assert.False(t, isTeam)
}

func TestRegistry_SetPlanValidation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := New(WithClock(fixedClock(now)))

	err := r.SetPlan(ctx, id.PortraitID(1), Type("platinum"), now.Add(time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidPlan))

	err = r.SetPlan(ctx, id.PortraitID(1), PlanTeam, now.Add(-time.Hour))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidPlan))
}

func TestRegistry_SeatsChangedReapportionsRunway(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := New(WithClock(fixedClock(now)))
	teamID := id.PortraitID(5)

	require.NoError(t, r.SetPlan(ctx, teamID, PlanTeam, now.Add(40*24*time.Hour)))

	// The first seat does not reapportion.
	require.NoError(t, r.SeatsChanged(ctx, teamID, 1, 1))
	assert.Equal(t, now.Add(40*24*time.Hour), r.Get(ctx, teamID).ExpiresAt)

	// Doubling the seats halves the runway.
	require.NoError(t, r.SeatsChanged(ctx, teamID, 1, 2))
	assert.Equal(t, now.Add(20*24*time.Hour), r.Get(ctx, teamID).ExpiresAt)

	// Dropping back to one seat doubles it again.
	require.NoError(t, r.SeatsChanged(ctx, teamID, -1, 1))
	assert.Equal(t, now.Add(40*24*time.Hour), r.Get(ctx, teamID).ExpiresAt)
}

func TestRegistry_SeatsChangedRequiresTeamPlan(t *testing.T) {
	ctx := context.Background()
	r := New()
	err := r.SeatsChanged(ctx, id.PortraitID(9), 1, 2)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidPlan))
}
