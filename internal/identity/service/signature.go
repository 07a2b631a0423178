package service

import (
	"context"

	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

const (
	sigTarget     = "IdentityRegistry"
	sigTargetType = "Registry"
	sigVersion    = 1

	actionRegisterFor           = "RegisterFor"
	actionTransferPortraitIDFor = "TransferPortraitIdFor"
	actionSetPrimaryFor         = "SetPrimaryPortraitFor"
)

// RegisterFor issues a Portrait ID authorized by signature. The signer must
// be the owner or one of the owner's active delegates; during the controlled
// registration period the signer must be the contract owner.
func (s *Service) RegisterFor(ctx context.Context, owner id.Address, nameHash id.Hash, delegate, signer id.Address, signature []byte, expirationTime uint64) (id.PortraitID, error) {
	ctx, span := s.tracer.Start(ctx, "identity.RegisterFor")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return 0, err
	}
	defer release()

	if err := s.checkControlledRegistration(signer); err != nil {
		return 0, s.fail(ctx, span, err)
	}
	if owner.IsZero() {
		return 0, s.fail(ctx, span, dErrors.New(dErrors.CodeInvalidAddress, "owner is required"))
	}
	if err := s.authorizeActorFor(ctx, owner, signer); err != nil {
		return 0, s.fail(ctx, span, err)
	}

	data := sigverify.SigData{
		Action:     actionRegisterFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(owner).
			Address(delegate).
			Hash(nameHash).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, signer, data, signature); err != nil {
		return 0, s.fail(ctx, span, err)
	}

	return s.applyRegistration(ctx, span, owner, nameHash, delegate)
}

// TransferPortraitIDFor moves portraitID to a new owner, authorized strictly
// by the current owner's signature: unlike the direct path, a delegate's
// signature is not accepted here. Binding the current owner into the signed
// params makes the signature dead once ownership changes.
func (s *Service) TransferPortraitIDFor(ctx context.Context, portraitID id.PortraitID, to id.Address, signature []byte, expirationTime uint64) error {
	ctx, span := s.tracer.Start(ctx, "identity.TransferPortraitIDFor")
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

	data := sigverify.SigData{
		Action:     actionTransferPortraitIDFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			PortraitID(portraitID).
			Address(to).
			Address(rec.Owner).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, rec.Owner, data, signature); err != nil {
		return s.fail(ctx, span, err)
	}

	if err := s.applyTransfer(ctx, rec, to); err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}

// SetPrimaryPortraitFor designates owner's primary identity, authorized by
// signature. The current primary is bound into the signed params as the
// staleness guard.
func (s *Service) SetPrimaryPortraitFor(ctx context.Context, owner id.Address, portraitID id.PortraitID, signer id.Address, signature []byte, expirationTime uint64) error {
	ctx, span := s.tracer.Start(ctx, "identity.SetPrimaryPortraitFor")
	defer span.End()

	release, err := s.gate.Enter()
	if err != nil {
		return err
	}
	defer release()

	if err := s.authorizeActorFor(ctx, owner, signer); err != nil {
		return s.fail(ctx, span, err)
	}

	currentPrimary, err := s.store.Primary(ctx, owner)
	if err != nil {
		return s.fail(ctx, span, dErrors.Wrap(err, dErrors.CodeInternal, "read primary portrait"))
	}

	data := sigverify.SigData{
		Action:     actionSetPrimaryFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(owner).
			PortraitID(portraitID).
			PortraitID(currentPrimary).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, signer, data, signature); err != nil {
		return s.fail(ctx, span, err)
	}

	if err := s.applySetPrimary(ctx, owner, portraitID); err != nil {
		return s.fail(ctx, span, err)
	}
	return nil
}
