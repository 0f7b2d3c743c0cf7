package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
)

// RulesHandler handles HTTP requests for rules, versions and content
type RulesHandler struct {
	service ruleregistry.Service
}

// NewRulesHandler creates a new rules handler
func NewRulesHandler(service ruleregistry.Service) *RulesHandler {
	return &RulesHandler{service: service}
}

// Routes returns the routes for rules
func (h *RulesHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateRule)
	r.Get("/", h.ListRules)
	r.Get("/{id}", h.GetRule)
	r.Patch("/{id}", h.UpdateRule)
	r.Delete("/{id}", h.DeleteRule)

	r.Post("/{id}/versions", h.PublishVersion)
	r.Get("/{id}/versions", h.ListVersions)
	r.Get("/{id}/versions/{version}", h.GetVersion)
	r.Get("/{id}/content", h.FetchContent)

	r.Put("/{id}/star", h.StarRule)
	r.Delete("/{id}/star", h.UnstarRule)

	// Lookup by qualified name, e.g. /by-name/acme/no-console-log
	r.Get("/by-name/{namespace}/{name}", h.GetRuleByName)

	return r
}

// CreateRuleRequest is the request body for creating a rule
type CreateRuleRequest struct {
	Name        string   `json:"name"`
	Namespace   string   `json:"namespace"`
	TeamID      string   `json:"team_id,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Version     string   `json:"version,omitempty"`
	Content     string   `json:"content"`
	Changelog   string   `json:"changelog,omitempty"`
}

// PublishVersionRequest is the request body for publishing a version
type PublishVersionRequest struct {
	Version   string `json:"version,omitempty"`
	Content   string `json:"content"`
	Changelog string `json:"changelog,omitempty"`
}

// UpdateRuleRequest is the request body for updating rule metadata
type UpdateRuleRequest struct {
	Description *string  `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Visibility  *string  `json:"visibility,omitempty"`
}

// CreateRule creates a new rule with its initial version
func (h *RulesHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	if req.Name == "" || req.Content == "" {
		writeBadRequest(w, r, "name and content are required")
		return
	}

	createReq := ruleregistry.CreateRuleRequest{
		Name:        req.Name,
		Namespace:   req.Namespace,
		OwnerID:     callerID,
		Description: req.Description,
		Tags:        req.Tags,
		Version:     req.Version,
		Content:     req.Content,
		Changelog:   req.Changelog,
	}

	if req.TeamID != "" {
		teamID, err := uuid.Parse(req.TeamID)
		if err != nil {
			writeBadRequest(w, r, "invalid team ID")
			return
		}
		createReq.TeamID = &teamID
	}

	if req.Visibility != "" {
		visibility := ruleregistry.Visibility(req.Visibility)
		if !visibility.IsValid() {
			writeBadRequest(w, r, "invalid visibility")
			return
		}
		createReq.Visibility = visibility
	}

	rule, err := h.service.CreateRule(r.Context(), createReq)
	if err != nil {
		writeError(w, r, "create rule", err)
		return
	}

	slog.Info("rule created", "rule_id", rule.ID, "name", rule.Name)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, rule)
}

// GetRule retrieves a rule by ID
func (h *RulesHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	rule, err := h.service.GetRule(r.Context(), CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, "get rule", err)
		return
	}

	render.JSON(w, r, rule)
}

// GetRuleByName retrieves a rule by its qualified name
func (h *RulesHandler) GetRuleByName(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")

	rule, err := h.service.GetRuleByName(r.Context(), CallerID(r.Context()), namespace, name)
	if err != nil {
		writeError(w, r, "get rule by name", err)
		return
	}

	render.JSON(w, r, rule)
}

// UpdateRule updates mutable rule metadata
func (h *RulesHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	updateReq := ruleregistry.UpdateRuleRequest{
		RuleID:      id,
		CallerID:    callerID,
		Description: req.Description,
		Tags:        req.Tags,
	}

	if req.Visibility != nil {
		visibility := ruleregistry.Visibility(*req.Visibility)
		if !visibility.IsValid() {
			writeBadRequest(w, r, "invalid visibility")
			return
		}
		updateReq.Visibility = &visibility
	}

	rule, err := h.service.UpdateRule(r.Context(), updateReq)
	if err != nil {
		writeError(w, r, "update rule", err)
		return
	}

	render.JSON(w, r, rule)
}

// DeleteRule deletes a rule with all its versions and content
func (h *RulesHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteRule(r.Context(), callerID, id); err != nil {
		writeError(w, r, "delete rule", err)
		return
	}

	slog.Info("rule deleted", "rule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ListRules lists rules visible to the caller
func (h *RulesHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	filters, ok := parseListFilters(w, r)
	if !ok {
		return
	}

	rules, err := h.service.ListRules(r.Context(), CallerID(r.Context()), filters)
	if err != nil {
		writeError(w, r, "list rules", err)
		return
	}

	if rules == nil {
		rules = []*ruleregistry.Rule{}
	}
	render.JSON(w, r, rules)
}

// PublishVersion publishes a new version of a rule
func (h *RulesHandler) PublishVersion(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	var req PublishVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, r, err.Error())
		return
	}

	if req.Content == "" {
		writeBadRequest(w, r, "content is required")
		return
	}

	result, err := h.service.PublishVersion(r.Context(), ruleregistry.PublishVersionRequest{
		RuleID:    id,
		AuthorID:  callerID,
		Version:   req.Version,
		Content:   req.Content,
		Changelog: req.Changelog,
	})
	if err != nil {
		writeError(w, r, "publish version", err)
		return
	}

	slog.Info("version published", "rule_id", id, "version", result.Version)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

// GetVersion retrieves version metadata
func (h *RulesHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	version := chi.URLParam(r, "version")

	result, err := h.service.GetVersion(r.Context(), CallerID(r.Context()), id, version)
	if err != nil {
		writeError(w, r, "get version", err)
		return
	}

	render.JSON(w, r, result)
}

// ListVersions lists all versions of a rule
func (h *RulesHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	versions, err := h.service.ListVersions(r.Context(), CallerID(r.Context()), id)
	if err != nil {
		writeError(w, r, "list versions", err)
		return
	}

	if versions == nil {
		versions = []*ruleregistry.RuleVersion{}
	}
	render.JSON(w, r, versions)
}

// FetchContent returns the content of a rule version. The version query
// parameter selects an exact version; it defaults to the latest.
func (h *RulesHandler) FetchContent(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	version := r.URL.Query().Get("version")
	if version == "" {
		version = ruleregistry.VersionLatest
	}

	content, err := h.service.FetchContent(r.Context(), ruleregistry.FetchContentRequest{
		RuleID:   id,
		Version:  version,
		CallerID: CallerID(r.Context()),
	})
	if err != nil {
		writeError(w, r, "fetch content", err)
		return
	}

	render.JSON(w, r, content)
}

// StarRule stars a rule for the caller
func (h *RulesHandler) StarRule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.StarRule(r.Context(), callerID, id); err != nil {
		writeError(w, r, "star rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UnstarRule removes the caller's star from a rule
func (h *RulesHandler) UnstarRule(w http.ResponseWriter, r *http.Request) {
	callerID, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.UnstarRule(r.Context(), callerID, id); err != nil {
		writeError(w, r, "unstar rule", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseIDParam parses a UUID path parameter, writing 400 on failure.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		writeBadRequest(w, r, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// parseListFilters builds RuleListFilters from query parameters.
func parseListFilters(w http.ResponseWriter, r *http.Request) (ruleregistry.RuleListFilters, bool) {
	var filters ruleregistry.RuleListFilters
	q := r.URL.Query()

	if v := q.Get("owner_id"); v != "" {
		ownerID, err := uuid.Parse(v)
		if err != nil {
			writeBadRequest(w, r, "invalid owner_id")
			return filters, false
		}
		filters.OwnerID = &ownerID
	}
	if v := q.Get("team_id"); v != "" {
		teamID, err := uuid.Parse(v)
		if err != nil {
			writeBadRequest(w, r, "invalid team_id")
			return filters, false
		}
		filters.TeamID = &teamID
	}
	if v := q.Get("namespace"); v != "" {
		filters.Namespace = &v
	}
	if v := q.Get("visibility"); v != "" {
		visibility := ruleregistry.Visibility(v)
		if !visibility.IsValid() {
			writeBadRequest(w, r, "invalid visibility")
			return filters, false
		}
		filters.Visibility = &visibility
	}
	if v := q.Get("tag"); v != "" {
		filters.Tag = &v
	}
	if v := q.Get("q"); v != "" {
		filters.Search = &v
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeBadRequest(w, r, "invalid limit")
			return filters, false
		}
		filters.Limit = &limit
	}
	if v := q.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeBadRequest(w, r, "invalid offset")
			return filters, false
		}
		filters.Offset = &offset
	}

	return filters, true
}
