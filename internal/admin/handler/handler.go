// Package handler exposes the administrative surface over HTTP.
package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"portrait/internal/plan"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/middleware"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/httputil"
	"portrait/pkg/requestcontext"
)

// Service defines the administrative operations the transport needs.
type Service interface {
	SetPaused(ctx context.Context, paused bool)
	Paused() bool
	SetMaxDelegates(ctx context.Context, n int) error
	SetServiceDelegate(ctx context.Context, addr id.Address)
	SetControlledRegistration(ctx context.Context, enabled bool)
	SetPlan(ctx context.Context, portraitID id.PortraitID, planType plan.Type, expiresAt time.Time) error
	IssueToken(ctx context.Context, addr id.Address, signature []byte, expirationTime uint64) (string, error)
}

// Handler handles admin endpoints.
type Handler struct {
	logger        *slog.Logger
	admin         Service
	metrics       *metrics.Metrics
	tokens        middleware.TokenValidator
	contractOwner id.Address
}

// New creates an admin Handler. Mutating routes require a bearer token for
// the contract owner; token issuance and the status probe are open.
func New(admin Service, logger *slog.Logger, m *metrics.Metrics, tokens middleware.TokenValidator, contractOwner id.Address) *Handler {
	return &Handler{
		logger:        logger,
		admin:         admin,
		metrics:       m,
		tokens:        tokens,
		contractOwner: contractOwner,
	}
}

// Register mounts the admin routes.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.ClientPlatform)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.Timeout(30 * time.Second))
	router.Use(middleware.ContentTypeJSON)
	router.Use(middleware.Latency(h.metrics))

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(h.tokens, h.logger))
		r.Use(middleware.RequireAdmin(h.contractOwner, h.logger))
		r.Post("/pause", h.handleSetPaused)
		r.Post("/params/max-delegates", h.handleSetMaxDelegates)
		r.Post("/params/service-delegate", h.handleSetServiceDelegate)
		r.Post("/registration/controlled", h.handleSetControlledRegistration)
		r.Post("/plans", h.handleSetPlan)
	})

	// Token issuance authorizes itself by signature.
	router.Post("/tokens", h.handleIssueToken)
	router.Get("/status", h.handleStatus)

	r.Mount("/", router)
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

type maxDelegatesRequest struct {
	MaxDelegates int `json:"max_delegates"`
}

type serviceDelegateRequest struct {
	ServiceDelegate string `json:"service_delegate"`
}

type controlledRegistrationRequest struct {
	Enabled bool `json:"enabled"`
}

type setPlanRequest struct {
	PortraitID id.PortraitID `json:"portrait_id"`
	Plan       string        `json:"plan"`
	ExpiresAt  time.Time     `json:"expires_at,omitempty"`
}

type issueTokenRequest struct {
	Address        string `json:"address"`
	Signature      string `json:"signature"`
	ExpirationTime uint64 `json:"expiration_time"`
}

func (h *Handler) handleSetPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	h.admin.SetPaused(r.Context(), req.Paused)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": req.Paused})
}

func (h *Handler) handleSetMaxDelegates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req maxDelegatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.admin.SetMaxDelegates(ctx, req.MaxDelegates); err != nil {
		h.writeOperationError(ctx, w, "set max delegates", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"max_delegates": req.MaxDelegates})
}

func (h *Handler) handleSetServiceDelegate(w http.ResponseWriter, r *http.Request) {
	var req serviceDelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// The zero address clears the service delegate.
	addr := id.ZeroAddress
	if req.ServiceDelegate != "" {
		var err error
		addr, err = id.ParseAddress(req.ServiceDelegate)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid service delegate address"))
			return
		}
	}
	h.admin.SetServiceDelegate(r.Context(), addr)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"service_delegate": addr.String()})
}

func (h *Handler) handleSetControlledRegistration(w http.ResponseWriter, r *http.Request) {
	var req controlledRegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	h.admin.SetControlledRegistration(r.Context(), req.Enabled)
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"controlled_registration": req.Enabled})
}

func (h *Handler) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req setPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := h.admin.SetPlan(ctx, req.PortraitID, plan.Type(req.Plan), req.ExpiresAt); err != nil {
		h.writeOperationError(ctx, w, "set plan", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"plan": req.Plan})
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req issueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	addr, err := id.ParseAddress(req.Address)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid address"))
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "signature must be hex encoded"))
		return
	}

	token, err := h.admin.IssueToken(ctx, addr, signature, req.ExpirationTime)
	if err != nil {
		h.writeOperationError(ctx, w, "issue token", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "Bearer"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"paused": h.admin.Paused()})
}

func (h *Handler) writeOperationError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "admin operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
