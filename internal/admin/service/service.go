// Package service implements the administrative surface: the pause switch,
// runtime registry parameters, the controlled registration period,
// subscription plans, and access token issuance.
package service

import (
	"context"
	"log/slog"
	"time"

	"portrait/internal/events"
	"portrait/internal/plan"
	"portrait/internal/platform/config"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
)

// Signed-operation constants for token issuance. A caller proves control of
// an address by signing the issuance request with its key.
const (
	sigTarget     = "AuthService"
	sigTargetType = "Registry"
	sigVersion    = 1

	actionIssueAccessToken = "IssueAccessToken"
)

// tokenTTL bounds every issued access token.
const tokenTTL = 24 * time.Hour

// IdentityControls is the slice of the identity registry the admin surface
// drives.
type IdentityControls interface {
	SetControlledRegistration(enabled bool)
}

// PlanWriter assigns subscription plans.
type PlanWriter interface {
	SetPlan(ctx context.Context, portraitID id.PortraitID, planType plan.Type, expiresAt time.Time) error
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(addr id.Address, expiresIn time.Duration) (string, error)
}

// Service carries out administrative operations.
type Service struct {
	gate     *pause.Switch
	params   *config.Params
	identity IdentityControls
	plans    PlanWriter
	tokens   TokenIssuer
	verifier *sigverify.Verifier
	events   events.Publisher
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher events.Publisher) Option {
	return func(s *Service) { s.events = publisher }
}

// New constructs the admin service. All collaborators are required.
func New(gate *pause.Switch, params *config.Params, identity IdentityControls, plans PlanWriter, tokens TokenIssuer, verifier *sigverify.Verifier, opts ...Option) (*Service, error) {
	if gate == nil || params == nil || identity == nil || plans == nil || tokens == nil || verifier == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "admin service is missing a collaborator")
	}
	s := &Service{
		gate:     gate,
		params:   params,
		identity: identity,
		plans:    plans,
		tokens:   tokens,
		verifier: verifier,
		events:   events.NopPublisher{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SetPaused flips the global pause switch. While paused every mutating
// registry entry point refuses to run; reads stay available.
func (s *Service) SetPaused(ctx context.Context, paused bool) {
	s.gate.SetPaused(paused)
	s.logger.InfoContext(ctx, "pause switch toggled", "paused", paused)
	s.emit(ctx, events.Event{Type: events.TypePauseToggled, Paused: paused})
}

// Paused reports the pause state.
func (s *Service) Paused() bool {
	return s.gate.Paused()
}

// SetMaxDelegates adjusts the per-owner active delegate bound. Already-active
// sets above the new bound are untouched; further assignments are refused
// until they shrink below it.
func (s *Service) SetMaxDelegates(ctx context.Context, n int) error {
	if n <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "max delegates must be positive")
	}
	s.params.SetMaxDelegates(n)
	s.logger.InfoContext(ctx, "max delegates changed", "max_delegates", n)
	s.emit(ctx, events.Event{Type: events.TypeParamsChanged, Role: "max_delegates"})
	return nil
}

// SetServiceDelegate adjusts the gas-sponsoring service address. The zero
// address disables the one-step registration assignment.
func (s *Service) SetServiceDelegate(ctx context.Context, addr id.Address) {
	s.params.SetServiceDelegate(addr)
	s.logger.InfoContext(ctx, "service delegate changed", "service_delegate", addr.String())
	s.emit(ctx, events.Event{Type: events.TypeParamsChanged, Role: "service_delegate", Delegate: addr.String()})
}

// SetControlledRegistration lifts or reinstates the controlled registration
// period on the identity registry.
func (s *Service) SetControlledRegistration(ctx context.Context, enabled bool) {
	s.identity.SetControlledRegistration(enabled)
	s.logger.InfoContext(ctx, "controlled registration changed", "enabled", enabled)
	s.emit(ctx, events.Event{Type: events.TypeParamsChanged, Role: "controlled_registration"})
}

// SetPlan assigns a subscription plan to a portrait.
func (s *Service) SetPlan(ctx context.Context, portraitID id.PortraitID, planType plan.Type, expiresAt time.Time) error {
	return s.plans.SetPlan(ctx, portraitID, planType, expiresAt)
}

// IssueToken exchanges a signature for a bearer token bound to the signing
// address. The signature proves control of the address; replaying it before
// its expiration only yields another token for the same address.
func (s *Service) IssueToken(ctx context.Context, addr id.Address, signature []byte, expirationTime uint64) (string, error) {
	if addr.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidAddress, "address is required")
	}

	data := sigverify.SigData{
		Action:     actionIssueAccessToken,
		Target:     sigTarget,
		TargetType: sigTargetType,
		Version:    sigVersion,
		Params: sigverify.NewParams().
			Address(addr).
			Sum(),
		ExpirationTime: expirationTime,
	}
	if err := s.verifier.IsValidSig(ctx, addr, data, signature); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(addr, tokenTTL)
	if err != nil {
		return "", err
	}
	s.logger.InfoContext(ctx, "access token issued", "address", addr.String())
	return token, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.events.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "event emission failed", "error", err)
	}
}
