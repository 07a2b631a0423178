// Package service implements the delegation registry: per-owner delegate
// sets with a bounded size and a symmetric double-opt-in handshake. Every
// other registry resolves "may X act for Y" through this service.
package service

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"context"

	"portrait/internal/delegation/models"
	"portrait/internal/delegation/ports"
	"portrait/internal/events"
	"portrait/internal/handshake"
	"portrait/internal/platform/config"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// maxBatchSize bounds one toggle batch; anything larger is a caller bug.
const maxBatchSize = 64

type Service struct {
	store    ports.Store
	verifier *sigverify.Verifier
	gate     *pause.Switch
	params   *config.Params
	events   events.Publisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer

	// owners is bound after construction because the identity registry
	// depends on this service in turn.
	owners ports.OwnerReader
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

// New constructs the delegation service. Store, verifier, gate, and params
// are required.
func New(store ports.Store, verifier *sigverify.Verifier, gate *pause.Switch, params *config.Params, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "delegate store is required")
	}
	if verifier == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "signature verifier is required")
	}
	if gate == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pause gate is required")
	}
	if params == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "registry params are required")
	}

	svc := &Service{
		store:    store,
		verifier: verifier,
		gate:     gate,
		params:   params,
		events:   events.NopPublisher{},
		logger:   slog.Default(),
		tracer:   otel.Tracer("portrait/delegation"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// BindIdentity wires the identity registry's owner lookup. Must be called
// once during startup, after both services exist.
func (s *Service) BindIdentity(owners ports.OwnerReader) {
	s.owners = owners
}

// ToggleDelegate flips the assignment flag for (owner, delegate). The caller
// must be the owner or one of the owner's active delegates.
func (s *Service) ToggleDelegate(ctx context.Context, caller, owner, delegate id.Address) (models.DelegateData, error) {
	ctx, span := s.tracer.Start(ctx, "delegation.ToggleDelegate")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.DelegateData{}, err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, owner, caller); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	rec, err := s.applyAssignToggle(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	s.countToggle("assign")
	return rec, nil
}

// ToggleDelegateArray applies ToggleDelegate per element. The batch is
// atomic: the first failing element rolls back every earlier one, so no
// partial mutation survives an error.
func (s *Service) ToggleDelegateArray(ctx context.Context, caller, owner id.Address, delegates []id.Address) ([]models.DelegateData, error) {
	ctx, span := s.tracer.Start(ctx, "delegation.ToggleDelegateArray")
	defer span.End()

	if len(delegates) == 0 || len(delegates) > maxBatchSize {
		return nil, dErrors.Newf(dErrors.CodeInvalidArrayLength,
			"batch must contain between 1 and %d delegates", maxBatchSize)
	}

	release, err := s.gate.Enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, owner, caller); err != nil {
		return nil, s.fail(ctx, span, err)
	}

	type journalEntry struct {
		delegate id.Address
		prev     models.DelegateData
	}
	journal := make([]journalEntry, 0, len(delegates))
	rollback := func() {
		for i := len(journal) - 1; i >= 0; i-- {
			entry := journal[i]
			if restoreErr := s.store.Save(ctx, owner, entry.delegate, entry.prev); restoreErr != nil {
				s.logger.ErrorContext(ctx, "batch rollback failed",
					"owner", owner.String(),
					"delegate", entry.delegate.String(),
					"error", restoreErr,
				)
			}
		}
	}

	results := make([]models.DelegateData, 0, len(delegates))
	for _, delegate := range delegates {
		prev, err := s.store.Get(ctx, owner, delegate)
		if err != nil {
			rollback()
			return nil, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record"))
		}
		rec, err := s.applyAssignToggle(ctx, owner, delegate)
		if err != nil {
			rollback()
			return nil, s.fail(ctx, span, err)
		}
		journal = append(journal, journalEntry{delegate: delegate, prev: prev})
		results = append(results, rec)
	}
	s.countToggle("assign_batch")
	return results, nil
}

// ToggleDelegateRequest flips the acceptance flag for (owner, delegate). The
// caller must be the delegate or one of the delegate's active delegates.
func (s *Service) ToggleDelegateRequest(ctx context.Context, caller, owner, delegate id.Address) (models.DelegateData, error) {
	ctx, span := s.tracer.Start(ctx, "delegation.ToggleDelegateRequest")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.DelegateData{}, err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, delegate, caller); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	rec, err := s.applyAcceptToggle(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	s.countToggle("request")
	return rec, nil
}

// AssignOnRegistration assigns a delegate as part of identity registration.
// The identity registry calls this while it already holds the transaction
// slot, so no gate is taken here. The configured service delegate is granted
// assignment and acceptance atomically (it sponsors the registration and
// cannot complete a manual accept step first); any other delegate receives
// assignment only and must accept through the request flow. The bool reports
// whether this call created the assignment, so a failed registration knows
// whether it has anything to unwind.
func (s *Service) AssignOnRegistration(ctx context.Context, owner, delegate id.Address) (models.DelegateData, bool, error) {
	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, false, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record")
	}
	if rec.HasAssigned {
		// Already assigned: registration never un-assigns.
		return rec, false, nil
	}

	if delegate == s.params.ServiceDelegate() {
		next, transition := handshake.ForceAccept(handshake.Record(rec))
		if err := s.persistAssignTransition(ctx, owner, delegate, models.DelegateData(next), transition); err != nil {
			return models.DelegateData{}, false, err
		}
		s.countToggle("service")
		return models.DelegateData(next), true, nil
	}

	next, err := s.applyAssignToggle(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, false, err
	}
	return next, true, nil
}

// UnassignOnRegistration reverses an assignment made by AssignOnRegistration
// when the enclosing registration later fails. Acceptance is preserved; on
// its own it grants no authority.
func (s *Service) UnassignOnRegistration(ctx context.Context, owner, delegate id.Address) error {
	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record")
	}
	if !rec.HasAssigned {
		return nil
	}

	rec.HasAssigned = false
	if err := s.store.Save(ctx, owner, delegate, rec); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save delegate record")
	}

	s.emit(ctx, events.Event{
		Type:        events.TypeDelegateToggled,
		Owner:       owner.String(),
		Delegate:    delegate.String(),
		HasAssigned: rec.HasAssigned,
		HasAccepted: rec.HasAccepted,
	})
	return nil
}

// IsDelegateOfAddress reports whether delegate may currently act for owner:
// assignment and acceptance must both be present.
func (s *Service) IsDelegateOfAddress(ctx context.Context, owner, delegate id.Address) (bool, error) {
	if owner.IsZero() || delegate.IsZero() {
		return false, nil
	}
	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record")
	}
	return rec.Active(), nil
}

// IsDelegateOrOwnerOfPortraitID reports whether caller is the portrait's
// owner or an active delegate of that owner.
func (s *Service) IsDelegateOrOwnerOfPortraitID(ctx context.Context, portraitID id.PortraitID, caller id.Address) (bool, error) {
	if s.owners == nil {
		return false, dErrors.New(dErrors.CodeInternal, "identity registry not bound")
	}
	owner, err := s.owners.OwnerOf(ctx, portraitID)
	if err != nil {
		return false, err
	}
	if caller == owner {
		return true, nil
	}
	return s.IsDelegateOfAddress(ctx, owner, caller)
}

// applyAssignToggle runs the shared assignment transition: validation,
// capacity check, handshake toggle, persistence, event.
func (s *Service) applyAssignToggle(ctx context.Context, owner, delegate id.Address) (models.DelegateData, error) {
	if owner.IsZero() || delegate.IsZero() {
		return models.DelegateData{}, dErrors.New(dErrors.CodeInvalidAddress, "owner and delegate are required")
	}
	if delegate == owner {
		return models.DelegateData{}, dErrors.New(dErrors.CodeInvalidAction, "an owner cannot be its own delegate")
	}

	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record")
	}

	next, transition := handshake.ToggleAssign(handshake.Record(rec), handshake.KeepAccept)
	if err := s.persistAssignTransition(ctx, owner, delegate, models.DelegateData(next), transition); err != nil {
		return models.DelegateData{}, err
	}
	return models.DelegateData(next), nil
}

func (s *Service) persistAssignTransition(ctx context.Context, owner, delegate id.Address, next models.DelegateData, transition handshake.Transition) error {
	if transition == handshake.Assigned {
		count, err := s.store.AssignedCount(ctx, owner)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "count assigned delegates")
		}
		if count >= s.params.MaxDelegates() {
			return dErrors.Newf(dErrors.CodeMaxDelegatesReached,
				"owner already has %d assigned delegates", count)
		}
	}

	if err := s.store.Save(ctx, owner, delegate, next); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "save delegate record")
	}

	s.emit(ctx, events.Event{
		Type:        events.TypeDelegateToggled,
		Owner:       owner.String(),
		Delegate:    delegate.String(),
		HasAssigned: next.HasAssigned,
		HasAccepted: next.HasAccepted,
	})
	return nil
}

func (s *Service) applyAcceptToggle(ctx context.Context, owner, delegate id.Address) (models.DelegateData, error) {
	if owner.IsZero() || delegate.IsZero() {
		return models.DelegateData{}, dErrors.New(dErrors.CodeInvalidAddress, "owner and delegate are required")
	}

	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record")
	}

	next := models.DelegateData(handshake.ToggleAccept(handshake.Record(rec)))
	if err := s.store.Save(ctx, owner, delegate, next); err != nil {
		return models.DelegateData{}, dErrors.Wrap(err, dErrors.CodeInternal, "save delegate record")
	}

	s.emit(ctx, events.Event{
		Type:        events.TypeDelegateRequestToggled,
		Owner:       owner.String(),
		Delegate:    delegate.String(),
		HasAssigned: next.HasAssigned,
		HasAccepted: next.HasAccepted,
	})
	return next, nil
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
	authorized, err := s.IsDelegateOfAddress(ctx, principal, caller)
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

func (s *Service) countToggle(kind string) {
	if s.metrics != nil {
		s.metrics.DelegateToggles.WithLabelValues(kind).Inc()
	}
}

func (s *Service) fail(ctx context.Context, span trace.Span, err error) error {
	span.RecordError(err)
	if s.metrics != nil {
		s.metrics.IncOperationFailure(string(dErrors.CodeOf(err)))
	}
	s.logger.DebugContext(ctx, "delegation operation rejected", "error", err)
	return err
}
