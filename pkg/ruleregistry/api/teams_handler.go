package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// TeamsHandler handles HTTP requests for teams
type TeamsHandler struct {
	service ruleregistry.Service
}

// NewTeamsHandler creates a new teams handler
func NewTeamsHandler(service ruleregistry.Service) *TeamsHandler {
	return &TeamsHandler{service: service}
}

// Routes returns the routes for teams
func (h *TeamsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateTeam)
	r.Post("/{id}/members", h.AddTeamMember)

	return r
}

// CreateTeamRequest is the request body for creating a team
type CreateTeamRequest struct {
	Name string `json:"name"`
}

// AddTeamMemberRequest is the request body for adding a team member
type AddTeamMemberRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// CreateTeam creates a new team owned by the caller
func (h *TeamsHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CreateTeamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}
	if req.Name == "" {
		writeBadRequest(w, r, "name is required")
		return
	}

	team, err := h.service.CreateTeam(r.Context(), ruleregistry.CreateTeamRequest{
		Name:    req.Name,
		OwnerID: callerID,
	})
	if err != nil {
		writeError(w, r, "create team", err)
		return
	}

	slog.Info("team created", "team_id", team.ID, "name", team.Name)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, team)
}

// AddTeamMember adds or updates a member of the team
func (h *TeamsHandler) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	teamID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req AddTeamMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeBadRequest(w, r, "invalid user ID")
		return
	}

	role := ruleregistry.TeamRole(req.Role)
	if !role.IsValid() {
		writeBadRequest(w, r, "invalid role")
		return
	}

	if err := h.service.AddTeamMember(r.Context(), callerID, teamID, userID, role); err != nil {
		writeError(w, r, "add team member", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
