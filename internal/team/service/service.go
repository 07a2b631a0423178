// Package service implements the team/role registry: hierarchical roles
// scoped to a team identity, with the same bilateral consent discipline as
// delegation and seat-count side effects feeding the billing collaborator.
package service

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"portrait/internal/events"
	"portrait/internal/handshake"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/pause"
	"portrait/internal/team/models"
	"portrait/internal/team/ports"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

type Service struct {
	store      ports.Store
	gate       *pause.Switch
	plans      ports.PlanChecker
	authorizer ports.Authorizer
	seats      ports.SeatAccountant
	events     events.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithSeatAccountant wires the billing collaborator notified on seat
// transitions.
func WithSeatAccountant(seats ports.SeatAccountant) Option {
	return func(s *Service) { s.seats = seats }
}

// New constructs the team service. Store, gate, plan checker, and authorizer
// are required.
func New(store ports.Store, gate *pause.Switch, plans ports.PlanChecker, authorizer ports.Authorizer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "team role store is required")
	}
	if gate == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pause gate is required")
	}
	if plans == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "plan checker is required")
	}
	if authorizer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "authorizer is required")
	}

	svc := &Service{
		store:      store,
		gate:       gate,
		plans:      plans,
		authorizer: authorizer,
		events:     events.NopPublisher{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("portrait/team"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ToggleTeamRole changes targetID's role on teamID with authorityID's
// standing. A role strictly below the target's current effective role is a
// force-demote and applies immediately with auto-accept; any other change
// flips assignment and acceptance together and records the requested role.
func (s *Service) ToggleTeamRole(ctx context.Context, caller id.Address, authorityID, teamID, targetID id.PortraitID, roleType models.RoleType) (models.TeamRoleData, error) {
	ctx, span := s.tracer.Start(ctx, "team.ToggleTeamRole")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.TeamRoleData{}, err
	}
	defer release()

	if !roleType.Storable() {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAction,
			"the owner role is implicit and cannot be granted"))
	}
	if err := s.requireTeamPlan(ctx, teamID); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, err)
	}
	if targetID == teamID {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAction,
			"the implicit team owner cannot be targeted"))
	}
	if err := s.authorizeActorFor(ctx, authorityID, caller); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, err)
	}

	authorityRole, err := s.authorityRole(ctx, teamID, authorityID)
	if err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, err)
	}

	rec, err := s.store.Get(ctx, teamID, targetID)
	if err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read team role record"))
	}

	// An authority only reaches records of members strictly below it.
	if rec.Active() && authorityRole <= rec.RoleType {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Newf(dErrors.CodeUnauthorized,
			"a %s cannot modify a %s", authorityRole, rec.RoleType))
	}

	if rec.Active() && roleType < rec.RoleType {
		// Force-demote: applies without the target's consent.
		next := models.TeamRoleData{RoleType: roleType, HasAssigned: true, HasAccepted: true}
		if err := s.store.Save(ctx, teamID, targetID, next); err != nil {
			return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "save team role record"))
		}
		s.emitRole(ctx, events.TypeRoleToggled, teamID, targetID, next)
		s.countToggle("demote")
		return next, nil
	}

	consent, transition := handshake.ToggleAssign(
		handshake.Record{HasAssigned: rec.HasAssigned, HasAccepted: rec.HasAccepted},
		handshake.CoupleAccept,
	)
	next := models.TeamRoleData{}
	if consent.HasAssigned {
		next = models.TeamRoleData{RoleType: roleType, HasAssigned: consent.HasAssigned, HasAccepted: consent.HasAccepted}
	}
	if err := s.store.Save(ctx, teamID, targetID, next); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "save team role record"))
	}
	if err := s.applySeatTransition(ctx, teamID, transition); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, err)
	}

	s.emitRole(ctx, events.TypeRoleToggled, teamID, targetID, next)
	s.countToggle("toggle")
	return next, nil
}

// ToggleTeamRoleRequest flips the member's acceptance ahead of an authority
// toggle. It is the pre-assignment consent path: once a role is assigned,
// acceptance already travelled with the assignment and the request path is
// closed.
func (s *Service) ToggleTeamRoleRequest(ctx context.Context, caller id.Address, memberID, teamID id.PortraitID) (models.TeamRoleData, error) {
	ctx, span := s.tracer.Start(ctx, "team.ToggleTeamRoleRequest")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.TeamRoleData{}, err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, memberID, caller); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, err)
	}

	rec, err := s.store.Get(ctx, teamID, memberID)
	if err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read team role record"))
	}
	if rec.HasAssigned {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAction,
			"role already assigned; acceptance travels with assignment"))
	}

	rec.HasAccepted = !rec.HasAccepted
	if err := s.store.Save(ctx, teamID, memberID, rec); err != nil {
		return models.TeamRoleData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "save team role record"))
	}

	s.emitRole(ctx, events.TypeRoleRequestToggled, teamID, memberID, rec)
	s.countToggle("request")
	return rec, nil
}

// GetTeamRoleForPortraitID returns memberID's effective role on teamID.
func (s *Service) GetTeamRoleForPortraitID(ctx context.Context, memberID, teamID id.PortraitID) (models.RoleType, error) {
	if err := s.requireTeamPlan(ctx, teamID); err != nil {
		return 0, err
	}
	if memberID == teamID {
		return models.RoleOwner, nil
	}
	rec, err := s.store.Get(ctx, teamID, memberID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read team role record")
	}
	if !rec.Active() {
		return 0, dErrors.Newf(dErrors.CodeNoTeamRole, "portrait %s holds no role on team %s", memberID, teamID)
	}
	return rec.RoleType, nil
}

// SeatCount returns the number of assigned seats on the team.
func (s *Service) SeatCount(ctx context.Context, teamID id.PortraitID) (int, error) {
	seats, err := s.store.SeatCount(ctx, teamID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "count team seats")
	}
	return seats, nil
}

func (s *Service) requireTeamPlan(ctx context.Context, teamID id.PortraitID) error {
	isTeam, err := s.plans.IsTeamPlan(ctx, teamID)
	if err != nil {
		return err
	}
	if !isTeam {
		return dErrors.Newf(dErrors.CodeInvalidPlan, "portrait %s is not on a team plan", teamID)
	}
	return nil
}

// authorityRole resolves the acting identity's authority on the team. The
// team identity itself is the implicit owner; anyone else needs an active
// administering role.
func (s *Service) authorityRole(ctx context.Context, teamID, authorityID id.PortraitID) (models.RoleType, error) {
	if authorityID == teamID {
		return models.RoleOwner, nil
	}
	rec, err := s.store.Get(ctx, teamID, authorityID)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read authority role record")
	}
	if !rec.Active() || !rec.RoleType.CanAdminister() {
		return 0, dErrors.Newf(dErrors.CodeUnauthorized,
			"portrait %s holds no administering role on team %s", authorityID, teamID)
	}
	return rec.RoleType, nil
}

func (s *Service) applySeatTransition(ctx context.Context, teamID id.PortraitID, transition handshake.Transition) error {
	if transition == handshake.NoChange {
		return nil
	}
	delta := 1
	if transition == handshake.Unassigned {
		delta = -1
	}

	seats, err := s.store.SeatCount(ctx, teamID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "count team seats")
	}
	if s.seats != nil {
		if err := s.seats.SeatsChanged(ctx, teamID, delta, seats); err != nil {
			return err
		}
	}

	s.emit(ctx, events.Event{
		Type:      events.TypeSeatChanged,
		TeamID:    teamID,
		SeatCount: seats,
	})
	return nil
}

func (s *Service) authorizeActorFor(ctx context.Context, portraitID id.PortraitID, caller id.Address) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	authorized, err := s.authorizer.IsDelegateOrOwnerOfPortraitID(ctx, portraitID, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return dErrors.Newf(dErrors.CodeUnauthorized,
			"%s may not act for portrait %s", caller, portraitID)
	}
	return nil
}

func (s *Service) emitRole(ctx context.Context, eventType events.Type, teamID, memberID id.PortraitID, rec models.TeamRoleData) {
	s.emit(ctx, events.Event{
		Type:        eventType,
		TeamID:      teamID,
		MemberID:    memberID,
		Role:        rec.RoleType.String(),
		HasAssigned: rec.HasAssigned,
		HasAccepted: rec.HasAccepted,
	})
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emission failed",
			"type", string(event.Type),
			"error", err,
		)
	}
}

func (s *Service) countToggle(kind string) {
	if s.metrics != nil {
		s.metrics.RoleToggles.WithLabelValues(kind).Inc()
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	if s.metrics != nil {
		s.metrics.IncOperationFailure(string(dErrors.CodeOf(err)))
	}
	s.logger.DebugContext(ctx, "team operation rejected", "error", err)
	return err
}
