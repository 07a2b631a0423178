// Package handler exposes the token ownership mirror over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"portrait/internal/platform/metrics"
	"portrait/internal/platform/middleware"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/httputil"
	"portrait/pkg/requestcontext"
)

// Service defines the mirror operations the transport needs.
type Service interface {
	OwnerOf(ctx context.Context, portraitID id.PortraitID) (id.Address, error)
	Approve(ctx context.Context, caller id.Address, portraitID id.PortraitID, spender id.Address) error
	TransferFrom(ctx context.Context, caller, from, to id.Address, portraitID id.PortraitID) error
}

// Handler handles token mirror endpoints.
type Handler struct {
	logger  *slog.Logger
	mirror  Service
	metrics *metrics.Metrics
	tokens  middleware.TokenValidator
}

// New creates a token Handler.
func New(mirror Service, logger *slog.Logger, m *metrics.Metrics, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		logger:  logger,
		mirror:  mirror,
		metrics: m,
		tokens:  tokens,
	}
}

// Register mounts the token routes.
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
		r.Post("/approve", h.handleApprove)
		r.Post("/transfer", h.handleTransfer)
	})

	router.Get("/owner/{portraitID}", h.handleOwnerOf)

	r.Mount("/", router)
}

type approveRequest struct {
	PortraitID uint64 `json:"portrait_id"`
	Spender    string `json:"spender"`
}

type transferRequest struct {
	PortraitID uint64 `json:"portrait_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	// The zero spender clears the approval, so an empty string is allowed.
	spender := id.ZeroAddress
	if req.Spender != "" {
		var err error
		spender, err = id.ParseAddress(req.Spender)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid spender address"))
			return
		}
	}

	if err := h.mirror.Approve(ctx, requestcontext.Caller(ctx), id.PortraitID(req.PortraitID), spender); err != nil {
		h.writeOperationError(ctx, w, "approve", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"approved": !spender.IsZero()})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	from, err := id.ParseAddress(req.From)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid from address"))
		return
	}
	to, err := id.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid to address"))
		return
	}

	if err := h.mirror.TransferFrom(ctx, requestcontext.Caller(ctx), from, to, id.PortraitID(req.PortraitID)); err != nil {
		h.writeOperationError(ctx, w, "transfer", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"owner": to.String()})
}

func (h *Handler) handleOwnerOf(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	owner, err := h.mirror.OwnerOf(ctx, portraitID)
	if err != nil {
		h.writeOperationError(ctx, w, "owner lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"owner": owner.String()})
}

func (h *Handler) writeOperationError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "token operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
