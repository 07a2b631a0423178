package service

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"portrait/internal/delegation/models"
	"portrait/internal/delegation/store"
	"portrait/internal/events"
	eventmemory "portrait/internal/events/store/memory"
	"portrait/internal/platform/config"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// keyBackend treats every signer as a plain key account.
type keyBackend struct{}

func (keyBackend) IsContract(context.Context, id.Address) (bool, error) { return false, nil }
func (keyBackend) ValidateSignature(context.Context, id.Address, id.Hash, []byte) (bool, error) {
	return false, nil
}
func (keyBackend) SimulateValidation(context.Context, id.Address, []byte, id.Hash, []byte) (bool, error) {
	return false, nil
}

type signer struct {
	key  *btcec.PrivateKey
	addr id.Address
}

func newSigner(t *testing.T) signer {
	t.Helper()
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return signer{key: key, addr: sigverify.AddressOfKey(key.PubKey())}
}

// sign produces the wire-format r||s||v signature over the canonical digest.
func (s signer) sign(t *testing.T, data sigverify.SigData) []byte {
	t.Helper()
	digest := data.Digest()
	compact := btcecdsa.SignCompact(s.key, digest[:], false)
	wire := make([]byte, 65)
	copy(wire[:64], compact[1:])
	wire[64] = compact[0] - 27
	return wire
}

type ServiceSuite struct {
	suite.Suite

	ctx      context.Context
	svc      *Service
	store    *store.InMemoryStore
	params   *config.Params
	gate     *pause.Switch
	eventLog *eventmemory.Store

	owner    signer
	delegate signer
	other    signer
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewMemory()
	s.params = config.NewParams()
	s.gate = pause.New()
	s.eventLog = eventmemory.New()

	verifier, err := sigverify.New(keyBackend{}, nil)
	s.Require().NoError(err)

	publisher := events.NewStorePublisher(s.eventLog)

	s.svc, err = New(s.store, verifier, s.gate, s.params, WithPublisher(publisher))
	s.Require().NoError(err)

	s.owner = newSigner(s.T())
	s.delegate = newSigner(s.T())
	s.other = newSigner(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) record(owner, delegate id.Address) models.DelegateData {
	rec, err := s.store.Get(s.ctx, owner, delegate)
	s.Require().NoError(err)
	return rec
}

func (s *ServiceSuite) TestToggleAssignsThenUnassigns() {
	rec, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.True(rec.HasAssigned)
	s.False(rec.HasAccepted)

	// Not active until the delegate accepts.
	active, err := s.svc.IsDelegateOfAddress(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.False(active)

	rec, err = s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.True(rec.Active())

	active, err = s.svc.IsDelegateOfAddress(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.True(active)

	// Unassigning revokes acceptance too.
	rec, err = s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.Equal(models.DelegateData{}, rec)

	count, err := s.store.AssignedCount(s.ctx, s.owner.addr)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestAcceptAloneDoesNotActivate() {
	rec, err := s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.False(rec.HasAssigned)
	s.True(rec.HasAccepted)

	active, err := s.svc.IsDelegateOfAddress(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.False(active)
}

func (s *ServiceSuite) TestSelfDelegationRejected() {
	_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.owner.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAction))
}

func (s *ServiceSuite) TestStrangerCannotToggle() {
	_, err := s.svc.ToggleDelegate(s.ctx, s.other.addr, s.owner.addr, s.delegate.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = s.svc.ToggleDelegateRequest(s.ctx, s.other.addr, s.owner.addr, s.delegate.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestActiveDelegateMayActForOwner() {
	_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	_, err = s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)

	// The active delegate assigns a third address on the owner's behalf.
	rec, err := s.svc.ToggleDelegate(s.ctx, s.delegate.addr, s.owner.addr, s.other.addr)
	s.Require().NoError(err)
	s.True(rec.HasAssigned)
}

func (s *ServiceSuite) TestMaxDelegatesLeavesStateUnchanged() {
	s.params.SetMaxDelegates(2)

	for _, d := range []signer{s.delegate, s.other} {
		_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, d.addr)
		s.Require().NoError(err)
	}

	extra := newSigner(s.T())
	_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, extra.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeMaxDelegatesReached))

	s.Equal(models.DelegateData{}, s.record(s.owner.addr, extra.addr))
	count, err := s.store.AssignedCount(s.ctx, s.owner.addr)
	s.Require().NoError(err)
	s.Equal(2, count)

	// Unassignment still works at capacity, and frees a slot.
	_, err = s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	_, err = s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, extra.addr)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestBatchRollsBackOnFailure() {
	s.params.SetMaxDelegates(2)
	third := newSigner(s.T())

	_, err := s.svc.ToggleDelegateArray(s.ctx, s.owner.addr, s.owner.addr,
		[]id.Address{s.delegate.addr, s.other.addr, third.addr})
	s.True(dErrors.HasCode(err, dErrors.CodeMaxDelegatesReached))

	// The two successful elements were rolled back.
	s.Equal(models.DelegateData{}, s.record(s.owner.addr, s.delegate.addr))
	s.Equal(models.DelegateData{}, s.record(s.owner.addr, s.other.addr))
	count, err := s.store.AssignedCount(s.ctx, s.owner.addr)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *ServiceSuite) TestBatchTogglesEachElement() {
	recs, err := s.svc.ToggleDelegateArray(s.ctx, s.owner.addr, s.owner.addr,
		[]id.Address{s.delegate.addr, s.other.addr})
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.True(recs[0].HasAssigned)
	s.True(recs[1].HasAssigned)

	_, err = s.svc.ToggleDelegateArray(s.ctx, s.owner.addr, s.owner.addr, nil)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidArrayLength))
}

func (s *ServiceSuite) TestPauseBlocksMutations() {
	s.gate.SetPaused(true)
	_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAction))

	s.gate.SetPaused(false)
	_, err = s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestAssignOnRegistration() {
	service := newSigner(s.T())
	s.params.SetServiceDelegate(service.addr)

	// The service delegate is activated in one step.
	rec, assigned, err := s.svc.AssignOnRegistration(s.ctx, s.owner.addr, service.addr)
	s.Require().NoError(err)
	s.True(assigned)
	s.True(rec.Active())

	// Anyone else still has to accept.
	rec, assigned, err = s.svc.AssignOnRegistration(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.True(assigned)
	s.True(rec.HasAssigned)
	s.False(rec.HasAccepted)

	// Idempotent for already-assigned delegates.
	rec, assigned, err = s.svc.AssignOnRegistration(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.False(assigned)
	s.True(rec.HasAssigned)
}

func (s *ServiceSuite) TestUnassignOnRegistrationKeepsAcceptance() {
	// The delegate had requested before the registration assigned them.
	_, err := s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	_, assigned, err := s.svc.AssignOnRegistration(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.True(assigned)

	// Unwinding the registration removes the assignment but not the request.
	s.Require().NoError(s.svc.UnassignOnRegistration(s.ctx, s.owner.addr, s.delegate.addr))
	rec, err := s.store.Get(s.ctx, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	s.False(rec.HasAssigned)
	s.True(rec.HasAccepted)

	// Unwinding an unassigned pair is a no-op.
	s.Require().NoError(s.svc.UnassignOnRegistration(s.ctx, s.owner.addr, s.delegate.addr))
}

func (s *ServiceSuite) expiry() uint64 {
	return uint64(time.Now().Add(time.Hour).Unix())
}

func (s *ServiceSuite) toggleForData(snapshot bool, expiry uint64) sigverify.SigData {
	return sigverify.SigData{
		Action:     actionToggleDelegateFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(s.owner.addr).
			Address(s.delegate.addr).
			Bool(snapshot).
			Sum(),
		ExpirationTime: expiry,
	}
}

func (s *ServiceSuite) TestToggleDelegateForVerifiesSignature() {
	expiry := s.expiry()
	sig := s.owner.sign(s.T(), s.toggleForData(false, expiry))

	rec, err := s.svc.ToggleDelegateFor(s.ctx, s.owner.addr, s.delegate.addr, s.owner.addr, sig, expiry, false)
	s.Require().NoError(err)
	s.True(rec.HasAssigned)

	// Replaying the same signature fails: the snapshot no longer matches.
	_, err = s.svc.ToggleDelegateFor(s.ctx, s.owner.addr, s.delegate.addr, s.owner.addr, sig, expiry, false)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestToggleDelegateForRejectsWrongSigner() {
	expiry := s.expiry()
	sig := s.other.sign(s.T(), s.toggleForData(false, expiry))

	// A stranger's signature fails authorization before verification.
	_, err := s.svc.ToggleDelegateFor(s.ctx, s.owner.addr, s.delegate.addr, s.other.addr, sig, expiry, false)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	// The owner's address with someone else's signature fails verification.
	_, err = s.svc.ToggleDelegateFor(s.ctx, s.owner.addr, s.delegate.addr, s.owner.addr, sig, expiry, false)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
}

func (s *ServiceSuite) TestToggleDelegateForRejectsExpired() {
	expiry := uint64(time.Now().Add(-time.Minute).Unix())
	sig := s.owner.sign(s.T(), s.toggleForData(false, expiry))

	_, err := s.svc.ToggleDelegateFor(s.ctx, s.owner.addr, s.delegate.addr, s.owner.addr, sig, expiry, false)
	s.True(dErrors.HasCode(err, dErrors.CodeExpiredSignature))
}

func (s *ServiceSuite) TestToggleDelegateRequestForVerifiesSignature() {
	expiry := s.expiry()
	data := sigverify.SigData{
		Action:     actionToggleDelegateRequestFor,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(s.owner.addr).
			Address(s.delegate.addr).
			Bool(false).
			Sum(),
		ExpirationTime: expiry,
	}
	sig := s.delegate.sign(s.T(), data)

	rec, err := s.svc.ToggleDelegateRequestFor(s.ctx, s.owner.addr, s.delegate.addr, s.delegate.addr, sig, expiry, false)
	s.Require().NoError(err)
	s.True(rec.HasAccepted)

	// Stale snapshot after the flip.
	_, err = s.svc.ToggleDelegateRequestFor(s.ctx, s.owner.addr, s.delegate.addr, s.delegate.addr, sig, expiry, false)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func (s *ServiceSuite) TestIsDelegateOrOwnerOfPortraitID() {
	portraitID := id.PortraitID(7)
	s.svc.BindIdentity(ownerReaderFunc(func(ctx context.Context, p id.PortraitID) (id.Address, error) {
		if p != portraitID {
			return id.Address{}, dErrors.New(dErrors.CodeNonExistentPortraitID, "unknown portrait id")
		}
		return s.owner.addr, nil
	}))

	ok, err := s.svc.IsDelegateOrOwnerOfPortraitID(s.ctx, portraitID, s.owner.addr)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.svc.IsDelegateOrOwnerOfPortraitID(s.ctx, portraitID, s.delegate.addr)
	s.Require().NoError(err)
	s.False(ok)

	_, err = s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	_, err = s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)

	ok, err = s.svc.IsDelegateOrOwnerOfPortraitID(s.ctx, portraitID, s.delegate.addr)
	s.Require().NoError(err)
	s.True(ok)

	_, err = s.svc.IsDelegateOrOwnerOfPortraitID(s.ctx, id.PortraitID(99), s.owner.addr)
	s.True(dErrors.HasCode(err, dErrors.CodeNonExistentPortraitID))
}

func (s *ServiceSuite) TestTogglesEmitEvents() {
	_, err := s.svc.ToggleDelegate(s.ctx, s.owner.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)
	_, err = s.svc.ToggleDelegateRequest(s.ctx, s.delegate.addr, s.owner.addr, s.delegate.addr)
	s.Require().NoError(err)

	emitted := s.eventLog.List()
	s.Require().Len(emitted, 2)
	s.Equal(events.TypeDelegateToggled, emitted[0].Type)
	s.Equal(s.owner.addr.String(), emitted[0].Owner)
	s.Equal(s.delegate.addr.String(), emitted[0].Delegate)
	s.True(emitted[0].HasAssigned)
	s.Equal(events.TypeDelegateRequestToggled, emitted[1].Type)
	s.True(emitted[1].HasAccepted)
}

// ownerReaderFunc adapts a function to the OwnerReader port.
type ownerReaderFunc func(ctx context.Context, portraitID id.PortraitID) (id.Address, error)

func (f ownerReaderFunc) OwnerOf(ctx context.Context, portraitID id.PortraitID) (id.Address, error) {
	return f(ctx, portraitID)
}
