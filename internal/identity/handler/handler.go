// Package handler exposes the identity registry over HTTP.
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

	identityModel "portrait/internal/identity/models"
	"portrait/internal/platform/metrics"
	"portrait/internal/platform/middleware"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/httputil"
	"portrait/pkg/requestcontext"
)

// Service defines the identity operations the transport needs.
type Service interface {
	Register(ctx context.Context, caller, owner id.Address, nameHash id.Hash, delegate id.Address) (id.PortraitID, error)
	RegisterFor(ctx context.Context, owner id.Address, nameHash id.Hash, delegate, signer id.Address, signature []byte, expirationTime uint64) (id.PortraitID, error)
	TransferPortraitID(ctx context.Context, caller id.Address, portraitID id.PortraitID, to id.Address) error
	TransferPortraitIDFor(ctx context.Context, portraitID id.PortraitID, to id.Address, signature []byte, expirationTime uint64) error
	SetPrimaryPortrait(ctx context.Context, caller, owner id.Address, portraitID id.PortraitID) error
	SetPrimaryPortraitFor(ctx context.Context, owner id.Address, portraitID id.PortraitID, signer id.Address, signature []byte, expirationTime uint64) error
	SetTokenized(ctx context.Context, caller id.Address, portraitID id.PortraitID, tokenized bool) error
	Get(ctx context.Context, portraitID id.PortraitID) (identityModel.Identity, error)
	PortraitIDsOf(ctx context.Context, owner id.Address) ([]id.PortraitID, error)
	PrimaryPortraitOf(ctx context.Context, owner id.Address) (id.PortraitID, error)
}

// Handler handles identity registry endpoints.
type Handler struct {
	logger   *slog.Logger
	identity Service
	metrics  *metrics.Metrics
	tokens   middleware.TokenValidator
}

// New creates an identity Handler.
func New(identity Service, logger *slog.Logger, m *metrics.Metrics, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		logger:   logger,
		identity: identity,
		metrics:  m,
		tokens:   tokens,
	}
}

// Register mounts the identity routes.
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
		r.Post("/portraits", h.handleRegister)
		r.Post("/portraits/{portraitID}/transfer", h.handleTransfer)
		r.Post("/portraits/primary", h.handleSetPrimary)
		r.Post("/portraits/{portraitID}/tokenized", h.handleSetTokenized)
	})

	router.Post("/portraits/register-for", h.handleRegisterFor)
	router.Post("/portraits/{portraitID}/transfer-for", h.handleTransferFor)
	router.Post("/portraits/primary-for", h.handleSetPrimaryFor)

	router.Get("/portraits/{portraitID}", h.handleGet)
	router.Get("/owners/{owner}/portraits", h.handleList)

	r.Mount("/", router)
}

type registerRequest struct {
	Owner    string `json:"owner"`
	NameHash string `json:"name_hash,omitempty"`
	Delegate string `json:"delegate,omitempty"`
}

type registerForRequest struct {
	registerRequest
	Signer         string `json:"signer"`
	Signature      string `json:"signature"`
	ExpirationTime uint64 `json:"expiration_time"`
}

type transferRequest struct {
	To string `json:"to"`
}

type transferForRequest struct {
	To             string `json:"to"`
	Signature      string `json:"signature"`
	ExpirationTime uint64 `json:"expiration_time"`
}

type primaryRequest struct {
	Owner      string `json:"owner"`
	PortraitID uint64 `json:"portrait_id"`
}

type primaryForRequest struct {
	primaryRequest
	Signer         string `json:"signer"`
	Signature      string `json:"signature"`
	ExpirationTime uint64 `json:"expiration_time"`
}

type tokenizedRequest struct {
	Tokenized bool `json:"tokenized"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, nameHash, delegate, err := parseRegistration(req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	portraitID, err := h.identity.Register(ctx, requestcontext.Caller(ctx), owner, nameHash, delegate)
	if err != nil {
		h.writeOperationError(ctx, w, "register", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uint64{"portrait_id": uint64(portraitID)})
}

func (h *Handler) handleRegisterFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerForRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, nameHash, delegate, err := parseRegistration(req.registerRequest)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signer, signature, err := parseSignature(req.Signer, req.Signature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	portraitID, err := h.identity.RegisterFor(ctx, owner, nameHash, delegate, signer, signature, req.ExpirationTime)
	if err != nil {
		h.writeOperationError(ctx, w, "register for", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uint64{"portrait_id": uint64(portraitID)})
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	to, err := id.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid transfer target"))
		return
	}

	if err := h.identity.TransferPortraitID(ctx, requestcontext.Caller(ctx), portraitID, to); err != nil {
		h.writeOperationError(ctx, w, "transfer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleTransferFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	var req transferForRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	to, err := id.ParseAddress(req.To)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid transfer target"))
		return
	}
	signature, err := decodeSignature(req.Signature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.identity.TransferPortraitIDFor(ctx, portraitID, to, signature, req.ExpirationTime); err != nil {
		h.writeOperationError(ctx, w, "transfer for", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPrimary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req primaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := id.ParseAddress(req.Owner)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address"))
		return
	}

	if err := h.identity.SetPrimaryPortrait(ctx, requestcontext.Caller(ctx), owner, id.PortraitID(req.PortraitID)); err != nil {
		h.writeOperationError(ctx, w, "set primary", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetPrimaryFor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req primaryForRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	owner, err := id.ParseAddress(req.Owner)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address"))
		return
	}
	signer, signature, err := parseSignature(req.Signer, req.Signature)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.identity.SetPrimaryPortraitFor(ctx, owner, id.PortraitID(req.PortraitID), signer, signature, req.ExpirationTime); err != nil {
		h.writeOperationError(ctx, w, "set primary for", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetTokenized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	var req tokenizedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.identity.SetTokenized(ctx, requestcontext.Caller(ctx), portraitID, req.Tokenized); err != nil {
		h.writeOperationError(ctx, w, "set tokenized", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	portraitID, err := id.ParsePortraitID(chi.URLParam(r, "portraitID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid portrait id"))
		return
	}
	rec, err := h.identity.Get(ctx, portraitID)
	if err != nil {
		h.writeOperationError(ctx, w, "get identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner, err := id.ParseAddress(chi.URLParam(r, "owner"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address"))
		return
	}
	ids, err := h.identity.PortraitIDsOf(ctx, owner)
	if err != nil {
		h.writeOperationError(ctx, w, "list identities", err)
		return
	}
	primary, err := h.identity.PrimaryPortraitOf(ctx, owner)
	if err != nil {
		h.writeOperationError(ctx, w, "primary lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"owner":        owner.String(),
		"portrait_ids": ids,
		"primary":      primary,
	})
}

func (h *Handler) writeOperationError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "identity operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}

func parseRegistration(req registerRequest) (id.Address, id.Hash, id.Address, error) {
	owner, err := id.ParseAddress(req.Owner)
	if err != nil {
		return id.Address{}, id.Hash{}, id.Address{}, dErrors.New(dErrors.CodeInvalidAddress, "invalid owner address")
	}
	var nameHash id.Hash
	if req.NameHash != "" {
		nameHash, err = id.ParseHash(req.NameHash)
		if err != nil {
			return id.Address{}, id.Hash{}, id.Address{}, dErrors.New(dErrors.CodeBadRequest, "invalid name hash")
		}
	}
	var delegate id.Address
	if req.Delegate != "" {
		delegate, err = id.ParseAddress(req.Delegate)
		if err != nil {
			return id.Address{}, id.Hash{}, id.Address{}, dErrors.New(dErrors.CodeInvalidAddress, "invalid delegate address")
		}
	}
	return owner, nameHash, delegate, nil
}

func parseSignature(rawSigner, rawSignature string) (id.Address, []byte, error) {
	signer, err := id.ParseAddress(rawSigner)
	if err != nil {
		return id.Address{}, nil, dErrors.New(dErrors.CodeInvalidAddress, "invalid signer address")
	}
	signature, err := decodeSignature(rawSignature)
	if err != nil {
		return id.Address{}, nil, err
	}
	return signer, signature, nil
}

func decodeSignature(raw string) ([]byte, error) {
	signature, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "signature must be hex encoded")
	}
	return signature, nil
}
