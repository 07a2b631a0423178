// Package service implements the identity registry: sequential Portrait ID
// issuance, ownership transfer, primary designation, and the tokenized-ID
// guard. Authorization resolves through the delegation registry.
package service

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"portrait/internal/events"
	"portrait/internal/identity/models"
	"portrait/internal/identity/ports"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/sentinel"
)

type Service struct {
	store      ports.Store
	verifier   *sigverify.Verifier
	gate       *pause.Switch
	delegation ports.DelegationRegistry
	naming     ports.NameReserver
	events     events.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer

	// contractOwner is the only address allowed to register while the
	// controlled registration period is active. The admin surface flips the
	// flag while registrations read it, so it is atomic.
	contractOwner          id.Address
	controlledRegistration atomic.Bool
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

// WithNaming wires the naming collaborator consumed during registration.
func WithNaming(naming ports.NameReserver) Option {
	return func(s *Service) { s.naming = naming }
}

// WithControlledRegistration restricts registration to the contract owner
// until the period is lifted.
func WithControlledRegistration(enabled bool) Option {
	return func(s *Service) { s.controlledRegistration.Store(enabled) }
}

// New constructs the identity service. Store, verifier, gate, and the
// delegation registry are required.
func New(store ports.Store, verifier *sigverify.Verifier, gate *pause.Switch, delegation ports.DelegationRegistry, contractOwner id.Address, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "identity store is required")
	}
	if verifier == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "signature verifier is required")
	}
	if gate == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pause gate is required")
	}
	if delegation == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "delegation registry is required")
	}

	svc := &Service{
		store:         store,
		verifier:      verifier,
		gate:          gate,
		delegation:    delegation,
		events:        events.NopPublisher{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("portrait/identity"),
		contractOwner: contractOwner,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Register issues the next Portrait ID to owner. An optional delegate is
// assigned through the delegation registry in the same transaction, and an
// optional reservation hash is handed to the naming collaborator.
func (s *Service) Register(ctx context.Context, caller, owner id.Address, nameHash id.Hash, delegate id.Address) (id.PortraitID, error) {
	ctx, span := s.tracer.Start(ctx, "identity.Register")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.checkControlledRegistration(caller); err != nil {
		return 0, s.fail(ctx, span, err)
	}
	if owner.IsZero() {
		return 0, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAddress, "owner is required"))
	}
	if err := s.authorizeActorFor(ctx, owner, caller); err != nil {
		return 0, s.fail(ctx, span, err)
	}

	return s.applyRegistration(ctx, span, owner, nameHash, delegate)
}

// applyRegistration mints the identity and runs the collaborator writes as
// one unit. Each mutation pushes an undo onto a journal that is replayed in
// reverse when a later step fails, so a rejected registration commits
// nothing. The name reservation runs last and needs no undo.
func (s *Service) applyRegistration(ctx context.Context, span trace.Span, owner id.Address, nameHash id.Hash, delegate id.Address) (id.PortraitID, error) {
	var journal []func()
	rollback := func() {
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
	}

	portraitID, err := s.store.Allocate(ctx, owner)
	if err != nil {
		return 0, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "allocate portrait id"))
	}
	journal = append(journal, func() {
		if err := s.store.Discard(ctx, portraitID); err != nil {
			s.logger.ErrorContext(ctx, "registration rollback failed",
				"step", "discard identity", "portrait_id", portraitID, "error", err)
		}
	})

	// First identity becomes the primary.
	primary, err := s.store.Primary(ctx, owner)
	if err != nil {
		rollback()
		return 0, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read primary portrait"))
	}
	if primary == 0 {
		if err := s.store.SetPrimary(ctx, owner, portraitID); err != nil {
			rollback()
			return 0, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "set primary portrait"))
		}
		journal = append(journal, func() {
			if err := s.store.SetPrimary(ctx, owner, 0); err != nil {
				s.logger.ErrorContext(ctx, "registration rollback failed",
					"step", "clear primary", "owner", owner.String(), "error", err)
			}
		})
	}

	if !delegate.IsZero() && delegate != owner {
		_, assigned, err := s.delegation.AssignOnRegistration(ctx, owner, delegate)
		if err != nil {
			rollback()
			return 0, s.fail(ctx, span, err)
		}
		if assigned {
			journal = append(journal, func() {
				if err := s.delegation.UnassignOnRegistration(ctx, owner, delegate); err != nil {
					s.logger.ErrorContext(ctx, "registration rollback failed",
						"step", "unassign delegate", "delegate", delegate.String(), "error", err)
				}
			})
		}
	}

	if !nameHash.IsZero() && s.naming != nil {
		if err := s.naming.ReserveName(ctx, nameHash, owner); err != nil {
			rollback()
			return 0, s.fail(ctx, span, err)
		}
	}

	event := events.Event{
		Type:       events.TypeIdentityRegistered,
		PortraitID: portraitID,
		Owner:      owner.String(),
	}
	if !delegate.IsZero() {
		event.Delegate = delegate.String()
	}
	s.emit(ctx, event)
	if s.metrics != nil {
		s.metrics.Registrations.Inc()
	}
	return portraitID, nil
}

// TransferPortraitID moves portraitID to a new owner. The caller must be the
// current owner or one of its active delegates, and the identity must not be
// tokenized.
func (s *Service) TransferPortraitID(ctx context.Context, caller id.Address, portraitID id.PortraitID, to id.Address) error {
	ctx, span := s.tracer.Start(ctx, "identity.TransferPortraitID")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	rec, err := s.mustGet(ctx, portraitID)
	if err != nil {
		return s.fail(ctx, span, err)
	}
	if rec.Tokenized {
		return s.fail(ctx, span, dErrors.New(dErrors.CodeAsNFT,
			"tokenized identity transfers only through its token"))
	}
	if err := s.validateTransferTarget(rec, to); err != nil {
		return s.fail(ctx, span, err)
	}
	if err := s.authorizeActorFor(ctx, rec.Owner, caller); err != nil {
		return s.fail(ctx, span, err)
	}

	if err := s.applyTransfer(ctx, rec, to); err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// SetPrimaryPortrait designates which of owner's identities is primary.
func (s *Service) SetPrimaryPortrait(ctx context.Context, caller, owner id.Address, portraitID id.PortraitID) error {
	ctx, span := s.tracer.Start(ctx, "identity.SetPrimaryPortrait")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, owner, caller); err != nil {
		return s.fail(ctx, span, err)
	}
	if err := s.applySetPrimary(ctx, owner, portraitID); err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// SetTokenized flips the tokenized flag. While tokenized, plain transfers
// are disabled and ownership changes only through the token hook.
func (s *Service) SetTokenized(ctx context.Context, caller id.Address, portraitID id.PortraitID, tokenized bool) error {
	ctx, span := s.tracer.Start(ctx, "identity.SetTokenized")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	rec, err := s.mustGet(ctx, portraitID)
	if err != nil {
		return s.fail(ctx, span, err)
	}
	if rec.Tokenized == tokenized {
		return s.fail(ctx, span, dErrors.New(dErrors.CodeDuplicateState, "tokenized flag already has that value"))
	}
	if err := s.authorizeActorFor(ctx, rec.Owner, caller); err != nil {
		return s.fail(ctx, span, err)
	}
	if err := s.store.SetTokenized(ctx, portraitID, tokenized); err != nil {
		return s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "set tokenized flag"))
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeIdentityTokenized,
		PortraitID: portraitID,
		Owner:      rec.Owner.String(),
	})
	return nil
}

// OnTokenTransfer applies an ownership change driven by the token mirror.
// The token adapter calls this while it already holds the transaction slot.
// The identity must be tokenized and from must match the recorded owner, so
// the token view and the registry can never diverge.
func (s *Service) OnTokenTransfer(ctx context.Context, from, to id.Address, portraitID id.PortraitID) error {
	rec, err := s.mustGet(ctx, portraitID)
	if err != nil {
		return err
	}
	if !rec.Tokenized {
		return dErrors.New(dErrors.CodeInvalidAction, "identity is not tokenized")
	}
	if rec.Owner != from {
		return dErrors.Newf(dErrors.CodeUnauthorized, "%s does not own portrait %s", from, portraitID)
	}
	if err := s.validateTransferTarget(rec, to); err != nil {
		return err
	}
	return s.applyTransfer(ctx, rec, to)
}

// OwnerOf returns the current owner of portraitID. This satisfies the
// delegation registry's OwnerReader port.
func (s *Service) OwnerOf(ctx context.Context, portraitID id.PortraitID) (id.Address, error) {
	rec, err := s.mustGet(ctx, portraitID)
	if err != nil {
		return id.Address{}, err
	}
	return rec.Owner, nil
}

// Get returns the full identity record.
func (s *Service) Get(ctx context.Context, portraitID id.PortraitID) (models.Identity, error) {
	return s.mustGet(ctx, portraitID)
}

// PortraitIDsOf lists the Portrait IDs owned by owner.
func (s *Service) PortraitIDsOf(ctx context.Context, owner id.Address) ([]id.PortraitID, error) {
	ids, err := s.store.IDsOf(ctx, owner)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list owned identities")
	}
	return ids, nil
}

// PrimaryPortraitOf returns owner's primary Portrait ID, or 0 when none.
func (s *Service) PrimaryPortraitOf(ctx context.Context, owner id.Address) (id.PortraitID, error) {
	primary, err := s.store.Primary(ctx, owner)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read primary portrait")
	}
	return primary, nil
}

// SetControlledRegistration lifts or reinstates the controlled registration
// period. Admin surface only; callers hold no transaction slot.
func (s *Service) SetControlledRegistration(enabled bool) {
	s.controlledRegistration.Store(enabled)
}

func (s *Service) checkControlledRegistration(caller id.Address) error {
	if s.controlledRegistration.Load() && caller != s.contractOwner {
		return dErrors.New(dErrors.CodeControlledRegistration,
			"registration is limited to the contract owner during the controlled period")
	}
	return nil
}

func (s *Service) validateTransferTarget(rec models.Identity, to id.Address) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidAddress, "transfer target is required")
	}
	if to == rec.Owner {
		return dErrors.New(dErrors.CodeInvalidAction, "identity already belongs to that address")
	}
	return nil
}

// applyTransfer is the single ownership-mutation routine shared by the plain
// transfer, the signed transfer, and the token hook. The primary is read
// before the rebind so a store failure afterwards can restore the original
// owner instead of leaving a moved identity with a stale primary.
func (s *Service) applyTransfer(ctx context.Context, rec models.Identity, to id.Address) error {
	from := rec.Owner

	primary, err := s.store.Primary(ctx, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read primary portrait")
	}

	if err := s.store.SetOwner(ctx, rec.ID, to); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "rebind identity owner")
	}

	// If the departed identity was the previous owner's primary, fall back
	// to the first identity still owned, or clear it.
	if primary == rec.ID {
		remaining, err := s.store.IDsOf(ctx, from)
		if err != nil {
			s.revertOwner(ctx, rec.ID, from)
			return dErrors.Wrap(err, dErrors.CodeInternal, "list owned identities")
		}
		next := id.PortraitID(0)
		if len(remaining) > 0 {
			next = remaining[0]
		}
		if err := s.store.SetPrimary(ctx, from, next); err != nil {
			s.revertOwner(ctx, rec.ID, from)
			return dErrors.Wrap(err, dErrors.CodeInternal, "reassign primary portrait")
		}
		s.emit(ctx, events.Event{
			Type:       events.TypePrimaryChanged,
			PortraitID: next,
			Owner:      from.String(),
		})
	}

	s.emit(ctx, events.Event{
		Type:       events.TypeIdentityTransferred,
		PortraitID: rec.ID,
		From:       from.String(),
		To:         to.String(),
	})
	if s.metrics != nil {
		s.metrics.Transfers.Inc()
	}
	return nil
}

// revertOwner undoes a SetOwner after a later transfer step failed.
func (s *Service) revertOwner(ctx context.Context, portraitID id.PortraitID, owner id.Address) {
	if err := s.store.SetOwner(ctx, portraitID, owner); err != nil {
		s.logger.ErrorContext(ctx, "transfer rollback failed",
			"portrait_id", portraitID, "owner", owner.String(), "error", err)
	}
}

func (s *Service) applySetPrimary(ctx context.Context, owner id.Address, portraitID id.PortraitID) error {
	rec, err := s.mustGet(ctx, portraitID)
	if err != nil {
		return err
	}
	if rec.Owner != owner {
		return dErrors.Newf(dErrors.CodeUnauthorized, "portrait %s is not owned by %s", portraitID, owner)
	}
	if err := s.store.SetPrimary(ctx, owner, portraitID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "set primary portrait")
	}
	s.emit(ctx, events.Event{
		Type:       events.TypePrimaryChanged,
		PortraitID: portraitID,
		Owner:      owner.String(),
	})
	return nil
}

func (s *Service) mustGet(ctx context.Context, portraitID id.PortraitID) (models.Identity, error) {
	rec, err := s.store.Get(ctx, portraitID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return models.Identity{}, dErrors.Newf(dErrors.CodeNonExistentPortraitID, "portrait %s does not exist", portraitID)
	}
	if err != nil {
		return models.Identity{}, dErrors.Wrap(err, dErrors.CodeInternal, "read identity")
	}
	return rec, nil
}

// authorizeActorFor checks that caller is principal itself or one of the
// principal's active delegates.
func (s *Service) authorizeActorFor(ctx context.Context, principal, caller id.Address) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is required")
	}
	if caller == principal {
		return nil
	}
	authorized, err := s.delegation.IsDelegateOfAddress(ctx, principal, caller)
	if err != nil {
		return err
	}
	if !authorized {
		return dErrors.Newf(dErrors.CodeUnauthorized,
			"%s is neither %s nor one of its delegates", caller, principal)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emission failed",
			"type", string(event.Type),
			"error", err,
		)
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	if s.metrics != nil {
		s.metrics.IncOperationFailure(string(dErrors.CodeOf(err)))
	}
	s.logger.DebugContext(ctx, "identity operation rejected", "error", err)
	return err
}
