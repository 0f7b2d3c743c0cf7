package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zxcvhub/registry/pkg/ruleregistry"
	"github.com/zxcvhub/registry/pkg/ruleregistry/repo/memory"
	memorystorage "github.com/zxcvhub/registry/pkg/ruleregistry/storage/memory"
)

func setupRouter(t *testing.T) (*chi.Mux, *jwtauth.JWTAuth, ruleregistry.Service) {
	t.Helper()

	svc, err := ruleregistry.New(
		ruleregistry.WithRepository(memory.New()),
		ruleregistry.WithBlobStore("memory", memorystorage.New()),
		ruleregistry.WithEventSink(ruleregistry.NewNoopEventSink()),
	)
	require.NoError(t, err)

	tokenAuth := NewTokenAuth("test-secret")

	router := chi.NewRouter()
	router.Use(jwtauth.Verifier(tokenAuth))
	router.Use(Authenticator)
	router.Mount("/rules", NewRulesHandler(svc).Routes())
	router.Mount("/teams", NewTeamsHandler(svc).Routes())

	return router, tokenAuth, svc
}

func bearerToken(t *testing.T, tokenAuth *jwtauth.JWTAuth, userID uuid.UUID) string {
	t.Helper()
	_, tokenString, err := tokenAuth.Encode(map[string]interface{}{"sub": userID.String()})
	require.NoError(t, err)
	return "Bearer " + tokenString
}

func doJSON(t *testing.T, router http.Handler, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateRuleEndpoint(t *testing.T) {
	router, tokenAuth, _ := setupRouter(t)
	auth := bearerToken(t, tokenAuth, uuid.New())

	t.Run("success", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/rules", auth, CreateRuleRequest{
			Name:       "no-console-log",
			Namespace:  "acme",
			Visibility: "public",
			Content:    "# No console.log",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var rule ruleregistry.Rule
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
		assert.Equal(t, "no-console-log", rule.Name)
		assert.Equal(t, "1.0.0", rule.Version)
	})

	t.Run("requires authentication", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/rules", "", CreateRuleRequest{
			Name:    "anon-rule",
			Content: "x",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects invalid token", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/rules", "Bearer garbage", CreateRuleRequest{
			Name:    "bad-token",
			Content: "x",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/rules", auth, CreateRuleRequest{Name: "no-content"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate name conflicts", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/rules", auth, CreateRuleRequest{
			Name:      "no-console-log",
			Namespace: "acme",
			Content:   "again",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestPublishAndFetchEndpoints(t *testing.T) {
	router, tokenAuth, _ := setupRouter(t)
	ownerID := uuid.New()
	auth := bearerToken(t, tokenAuth, ownerID)

	w := doJSON(t, router, http.MethodPost, "/rules", auth, CreateRuleRequest{
		Name:       "prefer-const",
		Namespace:  "acme",
		Visibility: "public",
		Content:    "v1 body",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rule ruleregistry.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	base := "/rules/" + rule.ID.String()

	t.Run("publish bumps patch", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, base+"/versions", auth, PublishVersionRequest{
			Content: "v2 body",
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		var result ruleregistry.PublishResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, "1.0.1", result.Version)
	})

	t.Run("publish duplicate version conflicts", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, base+"/versions", auth, PublishVersionRequest{
			Version: "1.0.1",
			Content: "dupe",
		})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("publish invalid version is bad request", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, base+"/versions", auth, PublishVersionRequest{
			Version: "not-semver",
			Content: "x",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fetch latest anonymously", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base+"/content", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var content ruleregistry.RuleContent
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &content))
		assert.Equal(t, "1.0.1", content.Version)
		assert.Equal(t, "v2 body", content.Content)
		assert.NotEmpty(t, content.ContentHash)
	})

	t.Run("fetch pinned version", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base+"/content?version=1.0.0", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var content ruleregistry.RuleContent
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &content))
		assert.Equal(t, "v1 body", content.Content)
	})

	t.Run("fetch missing version is not found", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base+"/content?version=9.9.9", "", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list versions", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base+"/versions", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var versions []*ruleregistry.RuleVersion
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &versions))
		assert.Len(t, versions, 2)
	})

	t.Run("lookup by name", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, "/rules/by-name/acme/prefer-const", "", nil)
		require.Equal(t, http.StatusOK, w.Code)
	})
}

func TestVisibilityEndpoints(t *testing.T) {
	router, tokenAuth, _ := setupRouter(t)
	ownerID := uuid.New()
	ownerAuth := bearerToken(t, tokenAuth, ownerID)
	strangerAuth := bearerToken(t, tokenAuth, uuid.New())

	w := doJSON(t, router, http.MethodPost, "/rules", ownerAuth, CreateRuleRequest{
		Name:       "internal-style",
		Visibility: "private",
		Content:    "secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rule ruleregistry.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	base := "/rules/" + rule.ID.String()

	t.Run("stranger gets forbidden", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base, strangerAuth, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		w = doJSON(t, router, http.MethodGet, base+"/content", strangerAuth, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("owner reads fine", func(t *testing.T) {
		w := doJSON(t, router, http.MethodGet, base, ownerAuth, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("stranger cannot publish", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, base+"/versions", strangerAuth, PublishVersionRequest{
			Content: "hijack",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		w := doJSON(t, router, http.MethodDelete, base, strangerAuth, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestStarEndpoints(t *testing.T) {
	router, tokenAuth, _ := setupRouter(t)
	auth := bearerToken(t, tokenAuth, uuid.New())

	w := doJSON(t, router, http.MethodPost, "/rules", auth, CreateRuleRequest{
		Name:       "starred",
		Visibility: "public",
		Content:    "x",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var rule ruleregistry.Rule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	base := "/rules/" + rule.ID.String()

	w = doJSON(t, router, http.MethodPut, base+"/star", auth, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodPut, base+"/star", auth, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodDelete, base+"/star", auth, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTeamEndpoints(t *testing.T) {
	router, tokenAuth, _ := setupRouter(t)
	founderID := uuid.New()
	founderAuth := bearerToken(t, tokenAuth, founderID)

	w := doJSON(t, router, http.MethodPost, "/teams", founderAuth, CreateTeamRequest{Name: "platform"})
	require.Equal(t, http.StatusCreated, w.Code)

	var team ruleregistry.Team
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &team))

	editorID := uuid.New()
	w = doJSON(t, router, http.MethodPost, "/teams/"+team.ID.String()+"/members", founderAuth, AddTeamMemberRequest{
		UserID: editorID.String(),
		Role:   "editor",
	})
	assert.Equal(t, http.StatusNoContent, w.Code)

	t.Run("non-owner cannot add members", func(t *testing.T) {
		editorAuth := bearerToken(t, tokenAuth, editorID)
		w := doJSON(t, router, http.MethodPost, "/teams/"+team.ID.String()+"/members", editorAuth, AddTeamMemberRequest{
			UserID: uuid.New().String(),
			Role:   "viewer",
		})
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		w := doJSON(t, router, http.MethodPost, "/teams/"+team.ID.String()+"/members", founderAuth, AddTeamMemberRequest{
			UserID: uuid.New().String(),
			Role:   "superuser",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
