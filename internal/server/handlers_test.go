package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/crudgrid/internal/catalog"
	"github.com/mesh-intelligence/crudgrid/internal/logging"
	"github.com/mesh-intelligence/crudgrid/internal/session"
	"github.com/mesh-intelligence/crudgrid/internal/sqlite"
	"github.com/mesh-intelligence/crudgrid/pkg/grid"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	router   *gin.Engine
	sessions *session.Store
	settings *sqlite.Backend
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	cat, err := catalog.Parse(strings.NewReader(catalog.Sample))
	require.NoError(t, err)

	sessions, err := session.Open(types.SessionConfig{InMemory: true}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { sessions.Close() })

	settings := sqlite.NewBackend()
	require.NoError(t, settings.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()}))
	t.Cleanup(func() { settings.Detach() })

	srv := New(Config{
		Catalog:  cat,
		Sessions: sessions,
		Settings: settings,
		Logger:   logging.Discard(),
	})
	return &testEnv{router: srv.Router(), sessions: sessions, settings: settings}
}

// do performs a request with an optional user and session cookie.
func (e *testEnv) do(t *testing.T, method, target, user, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if sessionID != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: sessionID})
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) StateResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp StateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sessionCookie(w *httptest.ResponseRecorder) string {
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			return c.Value
		}
	}
	return ""
}

func TestHandleListGrids(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp GridsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Grids, 2)
	assert.Equal(t, "audit_log", resp.Grids[0].ID)
	assert.Equal(t, "users", resp.Grids[1].ID)
}

func TestHandleState_UnknownGrid(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids/nope/state", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, CodeGridNotFound, resp.Code)
}

func TestHandleState_FirstVisitIssuesSession(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids/users/state", "", "")
	resp := decodeState(t, w)

	assert.NotEmpty(t, sessionCookie(w))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
	assert.Equal(t, "users", resp.Grid)
	assert.Equal(t, []string{"username", "firstName", "lastName"}, resp.State.VisibleColumns)
	assert.Equal(t, 25, resp.State.PageSize)
	assert.Equal(t, "lastName", resp.State.SortField)
	assert.Equal(t, types.SortAscending, resp.State.SortDirection)
	assert.Equal(t, 1, resp.State.CurrentPage)
	assert.False(t, resp.Persisted, "anonymous users never persist")
	assert.Equal(t, grid.SourceDefault, resp.Trace[grid.FieldSortField])
	assert.Equal(t, 25, resp.Query.Limit)
	assert.Equal(t, 0, resp.Query.Offset)
	assert.Nil(t, resp.Page)
}

func TestHandleState_RequestThenSessionThenRecord(t *testing.T) {
	env := setupTestServer(t)

	// First render of a signed-in user seeds the settings row.
	w := env.do(t, http.MethodGet, "/grids/users/state", "u1", "")
	first := decodeState(t, w)
	sid := sessionCookie(w)
	require.NotEmpty(t, sid)
	assert.True(t, first.Persisted)

	// Sort change in the same session persists.
	w = env.do(t, http.MethodGet, "/grids/users/state?sort=username&sort_direction=desc&page_size=50", "u1", sid)
	changed := decodeState(t, w)
	assert.True(t, changed.Persisted)
	assert.Equal(t, "username", changed.State.SortField)
	assert.Equal(t, grid.SourceRequest, changed.Trace[grid.FieldSortField])

	// Page navigation alone does not persist.
	w = env.do(t, http.MethodGet, "/grids/users/state?page=3&total=500", "u1", sid)
	paged := decodeState(t, w)
	assert.False(t, paged.Persisted)
	assert.Equal(t, 3, paged.State.CurrentPage)
	assert.Equal(t, grid.SourceSession, paged.Trace[grid.FieldSortField])
	assert.Equal(t, 100, paged.Query.Offset)
	require.NotNil(t, paged.Page)
	assert.Equal(t, 10, paged.Page.Count)

	// A new browser session picks the stored settings up.
	w = env.do(t, http.MethodGet, "/grids/users/state", "u1", "")
	fresh := decodeState(t, w)
	assert.NotEqual(t, sid, sessionCookie(w))
	assert.Equal(t, "username", fresh.State.SortField)
	assert.Equal(t, types.SortDescending, fresh.State.SortDirection)
	assert.Equal(t, 50, fresh.State.PageSize)
	assert.Equal(t, 1, fresh.State.CurrentPage)
	assert.Equal(t, grid.SourcePersisted, fresh.Trace[grid.FieldSortField])
	assert.False(t, fresh.Persisted)
}

func TestHandleState_InvalidValuesIgnored(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids/users/state?sort=email&sort_direction=desc&page_size=-4&page=abc", "", "")
	resp := decodeState(t, w)

	assert.Equal(t, "lastName", resp.State.SortField)
	assert.Equal(t, types.SortAscending, resp.State.SortDirection)
	assert.Equal(t, 25, resp.State.PageSize)
	assert.Equal(t, 1, resp.State.CurrentPage)
}

func TestHandleState_PageClampedToTotal(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids/users/state?page=7&total=30", "", "")
	resp := decodeState(t, w)
	require.NotNil(t, resp.Page)
	assert.Equal(t, 2, resp.Page.Number)
	assert.Equal(t, 2, resp.State.CurrentPage)
	assert.Equal(t, 25, resp.Query.Offset)

	w = env.do(t, http.MethodGet, "/grids/users/state?page=1000000000000000000", "", "")
	resp = decodeState(t, w)
	assert.Equal(t, 1, resp.State.CurrentPage)
	assert.Equal(t, 0, resp.Query.Offset)
}

func TestHandleSettings(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/grids/users/settings", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.do(t, http.MethodGet, "/grids/users/state?sort=firstName", "u1", "")

	w = env.do(t, http.MethodGet, "/grids/users/settings", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp SettingsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Settings)
	assert.Equal(t, "firstName", resp.Settings.SortField)
	assert.NotEmpty(t, resp.Settings.SettingsID)

	w = env.do(t, http.MethodDelete, "/grids/users/settings", "u1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err := env.settings.GetSettings(context.Background(), "u1", "users")
	assert.ErrorIs(t, err, types.ErrNotFound)

	w = env.do(t, http.MethodDelete, "/grids/users/settings", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleSettings_Errors(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		user   string
		status int
		code   string
	}{
		{"no user", http.MethodGet, "/grids/users/settings", "", http.StatusBadRequest, CodeUserRequired},
		{"not persistent", http.MethodGet, "/grids/audit_log/settings", "u1", http.StatusConflict, CodeNotPersistent},
		{"unknown grid", http.MethodDelete, "/grids/nope/settings", "u1", http.StatusNotFound, CodeGridNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.target, tt.user, "")
			assert.Equal(t, tt.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestHandleDeleteSession(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	w := env.do(t, http.MethodGet, "/grids/users/state?page=2", "", "")
	sid := sessionCookie(w)
	_, err := env.sessions.GetState(ctx, sid, "users")
	require.NoError(t, err)

	w = env.do(t, http.MethodDelete, "/session", "", sid)
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, err = env.sessions.GetState(ctx, sid, "users")
	assert.ErrorIs(t, err, types.ErrNotFound)

	w = env.do(t, http.MethodDelete, "/session", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHandleGetSession(t *testing.T) {
	env := setupTestServer(t)

	decode := func(w *httptest.ResponseRecorder) SessionResponse {
		t.Helper()
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	w := env.do(t, http.MethodGet, "/session", "", "")
	assert.Empty(t, sessionCookie(w), "listing must not issue a session")
	assert.Equal(t, SessionResponse{Grids: []string{}}, decode(w))

	w = env.do(t, http.MethodGet, "/grids/users/state", "", "")
	sid := sessionCookie(w)
	env.do(t, http.MethodGet, "/grids/audit_log/state", "", sid)

	resp := decode(env.do(t, http.MethodGet, "/session", "", sid))
	assert.Equal(t, sid, resp.Session)
	assert.Equal(t, []string{"audit_log", "users"}, resp.Grids)

	env.do(t, http.MethodDelete, "/session", "", sid)
	resp = decode(env.do(t, http.MethodGet, "/session", "", sid))
	assert.Empty(t, resp.Grids)
}

func TestHandleHealthAndMetrics(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, 2, health.Grids)

	env.do(t, http.MethodGet, "/grids/users/state", "", "")
	w = env.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "crudgrid_reconcile_total")
}
