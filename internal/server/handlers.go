package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/crudgrid/pkg/grid"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// totalParam carries the row count of the result set, when the caller
// knows it, so the response can include pagination.
const totalParam = "total"

// HandleListGrids handles GET /grids.
func (s *Server) HandleListGrids(c *gin.Context) {
	c.JSON(http.StatusOK, GridsResponse{Grids: s.catalog.Grids()})
}

// HandleState handles GET /grids/:grid/state.
//
// The query string carries the render request (sort, sort_direction, page,
// page_size, columns, column[name], filter[name], reset, reset_sort).
// Invalid values are ignored rather than rejected.
//
// Response:
//
//	200 OK: StateResponse
//	404 Not Found: unknown grid
//	500 Internal Server Error: store failure
func (s *Server) HandleState(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleState")

	cfg, ok := s.lookupGrid(c, logger)
	if !ok {
		return
	}

	sessionID, err := s.sessionID(c)
	if err != nil {
		logger.Error("Issuing session failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeStoreFailed})
		return
	}

	query := c.Request.URL.Query()
	out, err := s.reconciler.Reconcile(c.Request.Context(), grid.Request{
		Grid:      cfg,
		SessionID: sessionID,
		UserID:    userID(c),
		Params:    grid.ParseRequest(query, cfg),
	})
	if err != nil {
		logger.Error("Reconcile failed", "grid", cfg.ID, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeStoreFailed})
		return
	}

	resp := StateResponse{
		Grid:      cfg.ID,
		State:     out.State,
		Persisted: out.Persist,
		Trace:     out.Trace,
	}
	// A known total clamps the page before the query is derived.
	if total, err := strconv.Atoi(query.Get(totalParam)); err == nil && total >= 0 {
		page := grid.Paginate(out.State, total)
		resp.State.CurrentPage = page.Number
		resp.Page = &page
	}
	resp.Query = grid.BuildQuery(resp.State, s.hooks...)
	c.JSON(http.StatusOK, resp)
}

// HandleGetSettings handles GET /grids/:grid/settings.
//
// Response:
//
//	200 OK: SettingsResponse
//	400 Bad Request: no X-User-ID
//	404 Not Found: unknown grid or no stored settings
//	409 Conflict: grid is not persistent
func (s *Server) HandleGetSettings(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleGetSettings")

	cfg, user, ok := s.settingsTarget(c, logger)
	if !ok {
		return
	}

	settings, err := s.settings.GetSettings(c.Request.Context(), user, cfg.ID)
	if err != nil {
		s.writeSettingsError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{Settings: settings})
}

// HandleDeleteSettings handles DELETE /grids/:grid/settings. The next
// render of a fresh session then starts from the grid defaults.
//
// Response:
//
//	204 No Content
//	400 Bad Request: no X-User-ID
//	404 Not Found: unknown grid or no stored settings
//	409 Conflict: grid is not persistent
func (s *Server) HandleDeleteSettings(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleDeleteSettings")

	cfg, user, ok := s.settingsTarget(c, logger)
	if !ok {
		return
	}

	if err := s.settings.DeleteSettings(c.Request.Context(), user, cfg.ID); err != nil {
		s.writeSettingsError(c, logger, err)
		return
	}
	logger.Info("Deleted grid settings", "grid", cfg.ID, "user", user)
	c.Status(http.StatusNoContent)
}

// HandleGetSession handles GET /session. A request without a session
// cookie gets an empty list; no cookie is issued.
//
// Response:
//
//	200 OK: SessionResponse
//	500 Internal Server Error: store failure
func (s *Server) HandleGetSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleGetSession")

	sessionID, err := c.Cookie(SessionCookie)
	if err != nil || sessionID == "" {
		c.JSON(http.StatusOK, SessionResponse{Grids: []string{}})
		return
	}

	grids, err := s.sessions.Grids(c.Request.Context(), sessionID)
	switch {
	case errors.Is(err, types.ErrInvalidID):
		grids = []string{}
	case err != nil:
		logger.Error("Listing session grids failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeStoreFailed})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Session: sessionID, Grids: grids})
}

// HandleDeleteSession handles DELETE /session. It drops the state of every
// grid for the caller's session cookie and expires the cookie.
func (s *Server) HandleDeleteSession(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := s.logger.With("request_id", requestID, "handler", "HandleDeleteSession")

	sessionID, err := c.Cookie(SessionCookie)
	if err != nil || sessionID == "" {
		c.Status(http.StatusNoContent)
		return
	}

	if err := s.sessions.DeleteSession(c.Request.Context(), sessionID); err != nil && !errors.Is(err, types.ErrInvalidID) {
		logger.Error("Deleting session failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeStoreFailed})
		return
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Status(http.StatusNoContent)
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Grids: s.catalog.Len()})
}

func (s *Server) lookupGrid(c *gin.Context, logger *slog.Logger) (types.GridConfig, bool) {
	cfg, err := s.catalog.Get(c.Param("grid"))
	if err != nil {
		logger.Warn("Unknown grid", "grid", c.Param("grid"))
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeGridNotFound})
		return types.GridConfig{}, false
	}
	return cfg, true
}

// settingsTarget resolves the grid and user of a settings route and writes
// the error response when either is unusable.
func (s *Server) settingsTarget(c *gin.Context, logger *slog.Logger) (types.GridConfig, string, bool) {
	cfg, ok := s.lookupGrid(c, logger)
	if !ok {
		return cfg, "", false
	}
	user := userID(c)
	if user == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: UserHeader + " header is required", Code: CodeUserRequired})
		return cfg, "", false
	}
	if !cfg.Persistent || s.settings == nil {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "grid " + cfg.ID + " does not persist settings", Code: CodeNotPersistent})
		return cfg, "", false
	}
	return cfg, user, true
}

func (s *Server) writeSettingsError(c *gin.Context, logger *slog.Logger, err error) {
	if errors.Is(err, types.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no settings stored", Code: CodeSettingsNotFound})
		return
	}
	logger.Error("Settings store failed", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: CodeStoreFailed})
}

// sessionID returns the session cookie value, issuing a new UUID v7 cookie
// when the request has none.
func (s *Server) sessionID(c *gin.Context) (string, error) {
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" && !strings.Contains(id, "/") {
		return id, nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	c.SetCookie(SessionCookie, id.String(), int(s.sessionTTL.Seconds()), "/", "", false, true)
	return id.String(), nil
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(UserHeader))
}
