// Package handler exposes the team/role registry over HTTP.
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
	teamModel "portrait/internal/team/models"
	id "portrait/pkg/domain"
	dErrors "portrait/pkg/domain-errors"
	"portrait/pkg/platform/httputil"
	"portrait/pkg/requestcontext"
)

// Service defines the team role operations the transport needs.
type Service interface {
	ToggleTeamRole(ctx context.Context, caller id.Address, authorityID, teamID, targetID id.PortraitID, roleType teamModel.RoleType) (teamModel.TeamRoleData, error)
	ToggleTeamRoleRequest(ctx context.Context, caller id.Address, memberID, teamID id.PortraitID) (teamModel.TeamRoleData, error)
	GetTeamRoleForPortraitID(ctx context.Context, memberID, teamID id.PortraitID) (teamModel.RoleType, error)
	SeatCount(ctx context.Context, teamID id.PortraitID) (int, error)
}

// Handler handles team role endpoints.
type Handler struct {
	logger  *slog.Logger
	team    Service
	metrics *metrics.Metrics
	tokens  middleware.TokenValidator
}

// New creates a team Handler.
func New(team Service, logger *slog.Logger, m *metrics.Metrics, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		logger:  logger,
		team:    team,
		metrics: m,
		tokens:  tokens,
	}
}

// Register mounts the team routes.
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
		r.Post("/teams/{teamID}/roles", h.handleToggleRole)
		r.Post("/teams/{teamID}/roles/request", h.handleToggleRoleRequest)
	})

	router.Get("/teams/{teamID}/roles/{memberID}", h.handleGetRole)
	router.Get("/teams/{teamID}/seats", h.handleSeatCount)

	r.Mount("/", router)
}

type toggleRoleRequest struct {
	AuthorityID uint64 `json:"authority_id"`
	TargetID    uint64 `json:"target_id"`
	Role        string `json:"role"`
}

type roleRequestBody struct {
	MemberID uint64 `json:"member_id"`
}

type roleResponse struct {
	TeamID      uint64 `json:"team_id"`
	MemberID    uint64 `json:"member_id"`
	Role        string `json:"role"`
	HasAssigned bool   `json:"has_assigned"`
	HasAccepted bool   `json:"has_accepted"`
}

func (h *Handler) handleToggleRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParsePortraitID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}
	var req toggleRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	roleType, err := teamModel.ParseRole(req.Role)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.team.ToggleTeamRole(ctx, requestcontext.Caller(ctx),
		id.PortraitID(req.AuthorityID), teamID, id.PortraitID(req.TargetID), roleType)
	if err != nil {
		h.writeOperationError(ctx, w, "toggle team role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roleResponse{
		TeamID:      uint64(teamID),
		MemberID:    req.TargetID,
		Role:        rec.RoleType.String(),
		HasAssigned: rec.HasAssigned,
		HasAccepted: rec.HasAccepted,
	})
}

func (h *Handler) handleToggleRoleRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParsePortraitID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}
	var req roleRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	rec, err := h.team.ToggleTeamRoleRequest(ctx, requestcontext.Caller(ctx), id.PortraitID(req.MemberID), teamID)
	if err != nil {
		h.writeOperationError(ctx, w, "toggle team role request", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roleResponse{
		TeamID:      uint64(teamID),
		MemberID:    req.MemberID,
		Role:        rec.RoleType.String(),
		HasAssigned: rec.HasAssigned,
		HasAccepted: rec.HasAccepted,
	})
}

func (h *Handler) handleGetRole(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParsePortraitID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}
	memberID, err := id.ParsePortraitID(chi.URLParam(r, "memberID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid member id"))
		return
	}

	role, err := h.team.GetTeamRoleForPortraitID(ctx, memberID, teamID)
	if err != nil {
		h.writeOperationError(ctx, w, "get team role", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"role": role.String()})
}

func (h *Handler) handleSeatCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	teamID, err := id.ParsePortraitID(chi.URLParam(r, "teamID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid team id"))
		return
	}
	seats, err := h.team.SeatCount(ctx, teamID)
	if err != nil {
		h.writeOperationError(ctx, w, "seat count", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]int{"seats": seats})
}

func (h *Handler) writeOperationError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "team operation failed",
			"operation", op,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	httputil.WriteError(w, err)
}
