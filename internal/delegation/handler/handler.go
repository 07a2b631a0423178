// Package handler exposes the delegation registry over HTTP.
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

	delegationModel "portrait/internal/delegation/models"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/middleware"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/httputil"
	"portrait/pkg/requestcontext"
)

// Service defines the delegation operations the transport needs.
type Service interface {
	ToggleDelegate(ctx context.Context, caller, owner, delegate id.Address) (delegationModel.DelegateData, error)
	ToggleDelegateArray(ctx context.Context, caller, owner id.Address, delegates []id.Address) ([]delegationModel.DelegateData, error)
	ToggleDelegateRequest(ctx context.Context, caller, owner, delegate id.Address) (delegationModel.DelegateData, error)
	ToggleDelegateFor(ctx context.Context, owner, delegate, signer id.Address, signature []byte, expirationTime uint64, currentHasAssigned bool) (delegationModel.DelegateData, error)
	ToggleDelegateRequestFor(ctx context.Context, owner, delegate, signer id.Address, signature []byte, expirationTime uint64, currentHasAccepted bool) (delegationModel.DelegateData, error)
	IsDelegateOfAddress(ctx context.Context, owner, delegate id.Address) (bool, error)
	IsDelegateOrOwnerOfPortraitID(ctx context.Context, portraitID id.PortraitID, caller id.Address) (bool, error)
}

// Handler handles delegation registry endpoints.
type Handler struct {
	logger     *slog.Logger
	delegation Service
	metrics    *metrics.Metrics
	tokens     middleware.TokenValidator
}

// New creates a delegation Handler.
func New(delegation Service, logger *slog.Logger, m *metrics.Metrics, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		logger:     logger,
		delegation: delegation,
		metrics:    m,
		tokens:     tokens,
	}
}

// Register mounts the delegation routes.
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
		r.Post("/delegates/toggle", h.handleToggle)
		r.Post("/delegates/toggle-batch", h.handleToggleBatch)
		r.Post("/delegates/request", h.handleToggleRequest)
	})

	// Signature-authorized variants carry their own authorization, so no
	// bearer token is required.
	router.Post("/delegates/toggle-for", h.handleToggleFor)
	router.Post("/delegates/request-for", h.handleToggleRequestFor)

	router.Get("/delegates/{owner}/{delegate}", h.handleIsDelegate)
	router.Get("/portraits/{portraitID}/authorized/{caller}", h.handleIsDelegateOrOwner)

	r.Mount("/", router)
}

type toggleRequest struct {
	Owner    string `json:"owner"`
	Delegate string `json:"delegate"`
}

type toggleBatchRequest struct {
	Owner     string   `json:"owner"`
	Delegates []string `json:"delegates"`
}

type toggleForRequest struct {
	Owner          string `json:"owner"`
	Delegate       string `json:"delegate"`
	Signer         string `json:"signer"`
	Signature      string `json:"signature"`
	ExpirationTime uint64 `json:"expiration_time"`
	CurrentState   bool   `json:"current_state"`
}

type recordResponse struct {
	Owner       string `json:"owner"`
	Delegate    string `json:"delegate"`
	HasAssigned bool   `json:"has_assigned"`
	HasAccepted bool   `json:"has_accepted"`
}

func toRecordResponse(owner, delegate id.Address, rec delegationModel.DelegateData) recordResponse {
	return recordResponse{
		Owner:       owner.String(),
		Delegate:    delegate.String(),
		HasAssigned: rec.HasAssigned,
		HasAccepted: rec.HasAccepted,
	}
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, delegate, err := parsePair(req.Owner, req.Delegate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.delegation.ToggleDelegate(ctx, requestcontext.Caller(ctx), owner, delegate)
	if err != nil {
		h.writeOperationError(ctx, w, "toggle delegate", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(owner, delegate, rec))
}

func (h *Handler) handleToggleBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req toggleBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := id.ParseAddress(req.Owner)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address"))
		return
	}
	delegates := make([]id.Address, 0, len(req.Delegates))
	for _, raw := range req.Delegates {
		delegate, err := id.ParseAddress(raw)
		if err != nil {
			httputil.WriteError(w, dErrors.Newf(dErrors.CodeInvalidAddress, "invalid delegate address %q", raw))
			return
		}
		delegates = append(delegates, delegate)
	}

	recs, err := h.delegation.ToggleDelegateArray(ctx, requestcontext.Caller(ctx), owner, delegates)
	if err != nil {
		h.writeOperationError(ctx, w, "toggle delegate batch", err)
		return
	}
	out := make([]recordResponse, len(recs))
	for i, rec := range recs {
		out[i] = toRecordResponse(owner, delegates[i], rec)
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) handleToggleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, delegate, err := parsePair(req.Owner, req.Delegate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.delegation.ToggleDelegateRequest(ctx, requestcontext.Caller(ctx), owner, delegate)
	if err != nil {
		h.writeOperationError(ctx, w, "toggle delegate request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(owner, delegate, rec))
}

func (h *Handler) handleToggleFor(w http.ResponseWriter, r *http.Request) {
	h.handleSigned(w, r, h.delegation.ToggleDelegateFor)
}

func (h *Handler) handleToggleRequestFor(w http.ResponseWriter, r *http.Request) {
	h.handleSigned(w, r, h.delegation.ToggleDelegateRequestFor)
}

func (h *Handler) handleSigned(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, owner, delegate, signer id.Address, signature []byte, expirationTime uint64, currentState bool) (delegationModel.DelegateData, error),
) {
	ctx := r.Context()

	var req toggleForRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, delegate, err := parsePair(req.Owner, req.Delegate)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signer, err := id.ParseAddress(req.Signer)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid signer address"))
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "signature must be hex encoded"))
		return
	}

	rec, err := op(ctx, owner, delegate, signer, signature, req.ExpirationTime, req.CurrentState)
	if err != nil {
		h.writeOperationError(ctx, w, "signed delegate toggle", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRecordResponse(owner, delegate, rec))
}

func (h *Handler) handleIsDelegate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, delegate, err := parsePair(chi.URLParam(r, "owner"), chi.URLParam(r, "delegate"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	active, err := h.delegation.IsDelegateOfAddress(ctx, owner, delegate)
	if err != nil {
		h.writeOperationError(ctx, w, "delegate lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"is_delegate": active})
}

func (h *Handler) handleIsDelegateOrOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	caller, err := id.ParseAddress(chi.URLParam(r, "caller"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid caller address"))
		return
	}
	authorized, err := h.delegation.IsDelegateOrOwnerOfPortraitID(ctx, portraitID, caller)
	if err != nil {
		h.writeOperationError(ctx, w, "authorization lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"is_authorized": authorized})
}

func (h *Handler) writeOperationError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "delegation operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func parsePair(rawOwner, rawDelegate string) (id.Address, id.Address, error) {
	owner, err := id.ParseAddress(rawOwner)
	if err != nil {
		return id.Address{}, id.Address{}, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address")
	}
	delegate, err := id.ParseAddress(rawDelegate)
	if err != nil {
		return id.Address{}, id.Address{}, dErrors.New(dErrors.CodeInvalidAddress, "invalid delegate address")
	}
	return owner, delegate, nil
}
