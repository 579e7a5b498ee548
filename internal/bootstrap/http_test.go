package bootstrap

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commandcenter/inboxauth/config"
	"github.com/commandcenter/inboxauth/internal/testutil"
)

func newMockHandler(t *testing.T, cfg *config.AppConfig) http.Handler {
	t.Helper()
	comps, err := BuildAuth(AuthDeps{Config: cfg, DB: unconnectedDB(t), Logger: quietLogger()})
	require.NoError(t, err)
	return BuildHTTPHandler(HTTPDeps{Config: cfg, Auth: comps, Logger: quietLogger()})
}

func TestBuildHTTPHandler_HealthAndCORS(t *testing.T) {
	h := newMockHandler(t, mockConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestBuildHTTPHandler_DebugRoutesFollowConfig(t *testing.T) {
	cfg := mockConfig()
	cfg.HTTP.FrontendURL = "http://localhost:3000"

	rec := httptest.NewRecorder()
	newMockHandler(t, cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/frontend", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	cfg.HTTP.DebugRoutesEnabled = true
	rec = httptest.NewRecorder()
	newMockHandler(t, cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/frontend", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"FRONTEND_URL":"http://localhost:3000"}`, rec.Body.String())
}

func TestBuildHTTPHandler_DebugEnvReportsUnsetValuesAsNull(t *testing.T) {
	cfg := mockConfig()
	cfg.HTTP.DebugRoutesEnabled = true

	rec := httptest.NewRecorder()
	newMockHandler(t, cfg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/env", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"FRONTEND_URL":null,"OUTLOOK_REDIRECT_URI":null}`, rec.Body.String())
}

func TestBuildHTTPHandler_MockStartRedirectsToOwnCallback(t *testing.T) {
	rec := httptest.NewRecorder()
	newMockHandler(t, mockConfig()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/outlook/connect", nil))

	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/provider/callback", loc.Path)
	assert.True(t, strings.HasPrefix(loc.Query().Get("state"), "connect_"))
}

// Full mock-mode sign-in against a real database.
func TestMockSignInEndToEnd(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	cfg := mockConfig()
	cfg.HTTP.FrontendURL = "http://localhost:3000"
	cfg.HTTP.ConnectLandingPath = "/ConnectInbox"
	cfg.HTTP.LoginLandingPath = "/CommandCenter"
	comps, err := BuildAuth(AuthDeps{Config: cfg, DB: db, Logger: quietLogger()})
	require.NoError(t, err)
	h := BuildHTTPHandler(HTTPDeps{Config: cfg, Auth: comps, Logger: quietLogger()})

	start := httptest.NewRecorder()
	h.ServeHTTP(start, httptest.NewRequest(http.MethodGet, "/auth/provider/start", nil))
	require.Equal(t, http.StatusFound, start.Code)

	cb := httptest.NewRecorder()
	h.ServeHTTP(cb, httptest.NewRequest(http.MethodGet, start.Header().Get("Location"), nil))
	require.Equal(t, http.StatusFound, cb.Code)
	loc := cb.Header().Get("Location")
	require.True(t, strings.HasPrefix(loc, "http://localhost:3000/CommandCenter#token="), loc)
	token := strings.TrimPrefix(loc, "http://localhost:3000/CommandCenter#token=")

	meReq := httptest.NewRequest(http.MethodGet, "/identity/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+token)
	me := httptest.NewRecorder()
	h.ServeHTTP(me, meReq)
	require.Equal(t, http.StatusOK, me.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(me.Body.Bytes(), &body))
	assert.Equal(t, "dev@example.com", body["email"])
	assert.Equal(t, false, body["inboxConnected"])
}
