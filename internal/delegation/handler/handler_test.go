package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"portrait/internal/admintoken"
	"portrait/internal/delegation/handler"
	"portrait/internal/delegation/service"
	"portrait/internal/delegation/store"
	"portrait/internal/platform/config"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/pause"
	"portrait/internal/sigverify"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/testutil"
)

// Registered once; promauto panics on duplicate registration.
var testMetrics = metrics.New()

type keyBackend struct{}

func (keyBackend) IsContract(context.Context, id.Address) (bool, error) { return false, nil }
func (keyBackend) ValidateSignature(context.Context, id.Address, id.Hash, []byte) (bool, error) {
	return false, nil
}
func (keyBackend) SimulateValidation(context.Context, id.Address, []byte, id.Hash, []byte) (bool, error) {
	return false, nil
}

type HandlerSuite struct {
	suite.Suite

	router chi.Router
	tokens *admintoken.Service

	owner    id.Address
	delegate id.Address
}

func (s *HandlerSuite) SetupTest() {
	verifier, err := sigverify.New(keyBackend{}, nil)
	s.Require().NoError(err)

	svc, err := service.New(store.NewMemory(), verifier, pause.New(), config.NewParams())
	s.Require().NoError(err)

	s.tokens = admintoken.New("test-signing-key", "portrait")

	s.router = chi.NewRouter()
	handler.New(svc, slog.Default(), testMetrics, s.tokens).Register(s.router)

	s.owner = mustAddr(s.T(), "0x1111111111111111111111111111111111111111")
	s.delegate = mustAddr(s.T(), "0x2222222222222222222222222222222222222222")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func mustAddr(t *testing.T, raw string) id.Address {
	t.Helper()
	a, err := id.ParseAddress(raw)
	require.NoError(t, err)
	return a
}

func (s *HandlerSuite) bearer(addr id.Address) string {
	token, err := s.tokens.Issue(addr, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *HandlerSuite) TestToggleRequiresToken() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/delegates/toggle", map[string]string{
		"owner":    s.owner.String(),
		"delegate": s.delegate.String(),
	})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
}

func (s *HandlerSuite) TestToggleAssignsDelegate() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/delegates/toggle", map[string]string{
		"owner":    s.owner.String(),
		"delegate": s.delegate.String(),
	})
	req.Header.Set("Authorization", s.bearer(s.owner))

	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "has_assigned", true)
	testutil.AssertJSONContains(s.T(), rr, "has_accepted", false)

	// Not active until the delegate accepts.
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/delegates/"+s.owner.String()+"/"+s.delegate.String()))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "is_delegate", false)

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/delegates/request", map[string]string{
		"owner":    s.owner.String(),
		"delegate": s.delegate.String(),
	})
	req.Header.Set("Authorization", s.bearer(s.delegate))
	rr = testutil.DoRequest(s.router, req)
	testutil.AssertStatusOK(s.T(), rr)

	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet,
		"/delegates/"+s.owner.String()+"/"+s.delegate.String()))
	testutil.AssertJSONContains(s.T(), rr, "is_delegate", true)
}

func (s *HandlerSuite) TestStrangerCannotToggle() {
	stranger := mustAddr(s.T(), "0x3333333333333333333333333333333333333333")

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/delegates/toggle", map[string]string{
		"owner":    s.owner.String(),
		"delegate": s.delegate.String(),
	})
	req.Header.Set("Authorization", s.bearer(stranger))

	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, string(dErrors.CodeUnauthorized))
}

func (s *HandlerSuite) TestMalformedAddressRejected() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/delegates/toggle", map[string]string{
		"owner":    "not-an-address",
		"delegate": s.delegate.String(),
	})
	req.Header.Set("Authorization", s.bearer(s.owner))

	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidAddress))
}

func (s *HandlerSuite) TestMalformedBodyRejected() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/delegates/toggle", "{not json")
	req.Header.Set("Authorization", s.bearer(s.owner))

	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
}
