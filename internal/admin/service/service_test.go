package service

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	btcecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/suite"

	"portrait/internal/admintoken"
	"portrait/internal/events"
	eventmemory "portrait/internal/events/store/memory"
	"portrait/internal/plan"
	"portrait/internal/platform/config"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

type keyBackend struct{}

func (keyBackend) IsContract(context.Context, id.Address) (bool, error) { return false, nil }
func (keyBackend) ValidateSignature(context.Context, id.Address, id.Hash, []byte) (bool, error) {
	return false, nil
}
func (keyBackend) SimulateValidation(context.Context, id.Address, []byte, id.Hash, []byte) (bool, error) {
	return false, nil
}

type identityControlsRecorder struct {
	enabled bool
}

func (r *identityControlsRecorder) SetControlledRegistration(enabled bool) {
	r.enabled = enabled
}

type AdminSuite struct {
	suite.Suite

	ctx      context.Context
	svc      *Service
	gate     *pause.Switch
	params   *config.Params
	identity *identityControlsRecorder
	plans    *plan.Registry
	tokens   *admintoken.Service
	eventLog *eventmemory.Store

	key  *btcec.PrivateKey
	addr id.Address
}

func (s *AdminSuite) SetupTest() {
	s.ctx = context.Background()
	s.gate = pause.New()
	s.params = config.NewParams()
	s.identity = &identityControlsRecorder{}
	s.plans = plan.New()
	s.tokens = admintoken.New("test-signing-key", "portrait")
	s.eventLog = eventmemory.New()

	verifier, err := sigverify.New(keyBackend{}, nil)
	s.Require().NoError(err)

	s.svc, err = New(s.gate, s.params, s.identity, s.plans, s.tokens, verifier,
		WithPublisher(events.NewStorePublisher(s.eventLog)))
	s.Require().NoError(err)

	s.key, err = btcec.NewPrivateKey()
	s.Require().NoError(err)
	s.addr = sigverify.AddressOfKey(s.key.PubKey())
}

func TestAdminSuite(t *testing.T) {
	suite.Run(t, new(AdminSuite))
}

func (s *AdminSuite) TestPauseToggle() {
	s.svc.SetPaused(s.ctx, true)
	s.True(s.svc.Paused())

	_, err := s.gate.Enter()
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidAction))

	s.svc.SetPaused(s.ctx, false)
	s.False(s.svc.Paused())

	emitted := s.eventLog.ByType(events.TypePauseToggled)
	s.Require().Len(emitted, 2)
	s.True(emitted[0].Paused)
	s.False(emitted[1].Paused)
}

func (s *AdminSuite) TestSetMaxDelegates() {
	s.Require().NoError(s.svc.SetMaxDelegates(s.ctx, 12))
	s.Equal(12, s.params.MaxDelegates())

	err := s.svc.SetMaxDelegates(s.ctx, 0)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	s.Equal(12, s.params.MaxDelegates())
}

func (s *AdminSuite) TestSetServiceDelegate() {
	s.svc.SetServiceDelegate(s.ctx, s.addr)
	s.Equal(s.addr, s.params.ServiceDelegate())

	s.svc.SetServiceDelegate(s.ctx, id.ZeroAddress)
	s.True(s.params.ServiceDelegate().IsZero())
}

func (s *AdminSuite) TestSetControlledRegistration() {
	s.svc.SetControlledRegistration(s.ctx, true)
	s.True(s.identity.enabled)
	s.svc.SetControlledRegistration(s.ctx, false)
	s.False(s.identity.enabled)
}

func (s *AdminSuite) TestSetPlanDelegatesToRegistry() {
	teamID := id.PortraitID(7)
	s.Require().NoError(s.svc.SetPlan(s.ctx, teamID, plan.PlanTeam, time.Now().Add(time.Hour)))

	isTeam, err := s.plans.IsTeamPlan(s.ctx, teamID)
	s.Require().NoError(err)
	s.True(isTeam)

	err = s.svc.SetPlan(s.ctx, teamID, "enterprise", time.Now().Add(time.Hour))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidPlan))
}

func (s *AdminSuite) TestIssueTokenWithValidSignature() {
	signature := s.signIssuance(s.addr, uint64(time.Now().Add(time.Hour).Unix()))

	token, err := s.svc.IssueToken(s.ctx, s.addr, signature, uint64(time.Now().Add(time.Hour).Unix()))
	s.Require().NoError(err)

	claims, err := s.tokens.ValidateToken(token)
	s.Require().NoError(err)
	s.Equal(s.addr, claims.Address)
}

func (s *AdminSuite) TestIssueTokenRejectsForeignSignature() {
	other, err := btcec.NewPrivateKey()
	s.Require().NoError(err)

	expiry := uint64(time.Now().Add(time.Hour).Unix())
	data := issuanceData(s.addr, expiry)
	digest := data.Digest()
	compact := btcecdsa.SignCompact(other, digest[:], false)
	wire := make([]byte, 65)
	copy(wire[:64], compact[1:])
	wire[64] = compact[0] - 27

	_, err = s.svc.IssueToken(s.ctx, s.addr, wire, expiry)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
}

func (s *AdminSuite) TestIssueTokenRejectsExpiredSignature() {
	expiry := uint64(time.Now().Add(-time.Minute).Unix())
	signature := s.signIssuance(s.addr, expiry)

	_, err := s.svc.IssueToken(s.ctx, s.addr, signature, expiry)
	s.True(dErrors.HasCode(err, dErrors.CodeExpiredSignature))
}

func (s *AdminSuite) signIssuance(addr id.Address, expiry uint64) []byte {
	data := issuanceData(addr, expiry)
	digest := data.Digest()
	compact := btcecdsa.SignCompact(s.key, digest[:], false)
	wire := make([]byte, 65)
	copy(wire[:64], compact[1:])
	wire[64] = compact[0] - 27
	return wire
}

func issuanceData(addr id.Address, expiry uint64) sigverify.SigData {
	return sigverify.SigData{
		Action:         actionIssueAccessToken,
		Target:         sigTarget,
		TargetType:     sigTargetType,
		Version:        sigVersion,
		Params:         sigverify.NewParams().Address(addr).Sum(),
		ExpirationTime: expiry,
	}
}
