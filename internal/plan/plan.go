// Package plan tracks each portrait's subscription plan and implements the
// seat accounting the team registry triggers. The pricing formula stays in
// here so the team registry only ever reports seat transitions.
package plan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"portrait/internal/events"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// Type is a subscription plan.
type Type string

const (
	PlanFree     Type = "free"
	PlanPersonal Type = "personal"
	PlanTeam     Type = "team"
)

// Subscription is one portrait's plan and its expiration. Free plans do not
// expire.
type Subscription struct {
	Plan      Type      `json:"plan"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Registry holds subscriptions in memory and answers the plan checks the
// team registry depends on.
type Registry struct {
	mu     sync.RWMutex
	subs   map[id.PortraitID]Subscription
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Registry)

func WithPublisher(publisher events.Publisher) Option {
	return func(r *Registry) { r.events = publisher }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source. Tests pin it.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns an empty plan registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		subs:   make(map[id.PortraitID]Subscription),
		events: events.NopPublisher{},
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetPlan assigns a subscription to a portrait. Admin surface only.
func (r *Registry) SetPlan(ctx context.Context, portraitID id.PortraitID, plan Type, expiresAt time.Time) error {
	switch plan {
	case PlanFree, PlanPersonal, PlanTeam:
	default:
		return dErrors.Newf(dErrors.CodeInvalidPlan, "unknown plan %q", plan)
	}
	if plan != PlanFree && !expiresAt.After(r.now()) {
		return dErrors.New(dErrors.CodeInvalidPlan, "paid plans need a future expiration")
	}

	r.mu.Lock()
	r.subs[portraitID] = Subscription{Plan: plan, ExpiresAt: expiresAt}
	r.mu.Unlock()

	if err := r.events.Emit(ctx, events.Event{
		Type:       events.TypeParamsChanged,
		PortraitID: portraitID,
		Role:       string(plan),
	}); err != nil {
		r.logger.ErrorContext(ctx, "event emission failed", "error", err)
	}
	return nil
}

// Get returns the portrait's subscription; unknown portraits are on the free
// plan.
func (r *Registry) Get(_ context.Context, portraitID id.PortraitID) Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[portraitID]
	if !ok {
		return Subscription{Plan: PlanFree}
	}
	return sub
}

// IsTeamPlan reports whether the portrait currently holds an unexpired team
// plan.
func (r *Registry) IsTeamPlan(ctx context.Context, teamID id.PortraitID) (bool, error) {
	sub := r.Get(ctx, teamID)
	return sub.Plan == PlanTeam && sub.ExpiresAt.After(r.now()), nil
}

// SeatsChanged reapportions the team's remaining subscription time across
// the new seat count: the paid value stays constant, so more seats shorten
// the runway proportionally and fewer seats extend it. seats is the count
// after the transition.
func (r *Registry) SeatsChanged(ctx context.Context, teamID id.PortraitID, delta, seats int) error {
	prevSeats := seats - delta
	if prevSeats <= 0 || seats <= 0 {
		// First seat in, or last seat out: nothing to reapportion.
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[teamID]
	if !ok || sub.Plan != PlanTeam {
		return dErrors.Newf(dErrors.CodeInvalidPlan, "portrait %s is not on a team plan", teamID)
	}
	remaining := sub.ExpiresAt.Sub(r.now())
	if remaining <= 0 {
		return nil
	}

	sub.ExpiresAt = r.now().Add(remaining * time.Duration(prevSeats) / time.Duration(seats))
	r.subs[teamID] = sub

	r.logger.InfoContext(ctx, "team runway reapportioned",
		"team_id", teamID.String(),
		"seats", seats,
		"expires_at", sub.ExpiresAt,
	)
	return nil
}
