package service

import (
	"context"

	"portrait/internal/delegation/models"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// Signed-operation constants. The signed message binds each operation to
// this registry, so a signature authorizing a delegate toggle can never be
// replayed against another registry or another operation.
const (
	sigTarget     = "DelegationRegistry"
	sigTargetType = "Registry"
	sigVersion    = 1

	actionToggleDelegateFor        = "ToggleDelegateFor"
	actionToggleDelegateRequestFor = "ToggleDelegateRequestFor"
)

// ToggleDelegateFor applies an assignment toggle authorized by signature
// instead of by caller identity. currentHasAssigned is the state the signer
// saw when signing; a mismatch means the signature was produced against a
// stale snapshot and the operation is refused. Binding the snapshot into the
// signed params also makes the signature single-use: once applied, the state
// flips and the same signature no longer matches.
func (s *Service) ToggleDelegateFor(ctx context.Context, owner, delegate, signer id.Address, signature []byte, expirationTime uint64, currentHasAssigned bool) (models.DelegateData, error) {
	ctx, span := s.tracer.Start(ctx, "delegation.ToggleDelegateFor")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.DelegateData{}, err
	}
	defer release()

	if owner.IsZero() || delegate.IsZero() {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAddress, "owner and delegate are required"))
	}

	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record"))
	}
	if rec.HasAssigned != currentHasAssigned {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeUnauthorized,
			"signed assignment state does not match the registry"))
	}

	if err := s.authorizeActorFor(ctx, owner, signer); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}

	data := sigverify.SigData{
		Action:     actionToggleDelegateFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(owner).
			Address(delegate).
			Bool(currentHasAssigned).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, signer, data, signature); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}

	next, err := s.applyAssignToggle(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	s.countToggle("assign_for")
	return next, nil
}

// ToggleDelegateRequestFor applies an acceptance toggle authorized by the
// delegate's signature. currentHasAccepted is the acceptance state the
// signer saw when signing.
func (s *Service) ToggleDelegateRequestFor(ctx context.Context, owner, delegate, signer id.Address, signature []byte, expirationTime uint64, currentHasAccepted bool) (models.DelegateData, error) {
	ctx, span := s.tracer.Start(ctx, "delegation.ToggleDelegateRequestFor")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return models.DelegateData{}, err
	}
	defer release()

	if owner.IsZero() || delegate.IsZero() {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAddress, "owner and delegate are required"))
	}

	rec, err := s.store.Get(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read delegate record"))
	}
	if rec.HasAccepted != currentHasAccepted {
		return models.DelegateData{}, s.fail(ctx, span, dErrors.New(dErrors.CodeUnauthorized,
			"signed acceptance state does not match the registry"))
	}

	if err := s.authorizeActorFor(ctx, delegate, signer); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}

	data := sigverify.SigData{
		Action:     actionToggleDelegateRequestFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(owner).
			Address(delegate).
			Bool(currentHasAccepted).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, signer, data, signature); err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}

	next, err := s.applyAcceptToggle(ctx, owner, delegate)
	if err != nil {
		return models.DelegateData{}, s.fail(ctx, span, err)
	}
	s.countToggle("request_for")
	return next, nil
}
