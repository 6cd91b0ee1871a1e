// Package server exposes grid reconciliation over HTTP with gin.
//
// Routes:
//
//	GET    /grids                  grid catalog
//	GET    /grids/:grid/state      reconcile one render
//	GET    /grids/:grid/settings   caller's persisted settings
//	DELETE /grids/:grid/settings   forget caller's persisted settings
//	GET    /session                grids with state in the caller's session
//	DELETE /session                drop the caller's session state
//	GET    /healthz                liveness
//	GET    /metrics                Prometheus metrics
//
// The browser session is the crudgrid_session cookie, issued on first
// contact. The user is the X-User-ID header; requests without it are
// anonymous and never touch persisted settings.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesh-intelligence/crudgrid/internal/catalog"
	"github.com/mesh-intelligence/crudgrid/pkg/grid"
	"github.com/mesh-intelligence/crudgrid/pkg/types"
)

// Header and cookie names.
const (
	SessionCookie   = "crudgrid_session"
	UserHeader      = "X-User-ID"
	RequestIDHeader = "X-Request-ID"
)

// SessionStore is the session store the server needs: reconciliation plus
// listing the grids a session has rendered.
type SessionStore interface {
	types.SessionStore
	Grids(ctx context.Context, sessionID string) ([]string, error)
}

// Config wires the server's collaborators.
type Config struct {
	Catalog  *catalog.Catalog
	Sessions SessionStore

	// Settings may be nil; every grid then behaves as non-persistent.
	Settings types.SettingsStore

	Logger *slog.Logger

	// SessionTTL sets the session cookie Max-Age. Zero issues a browser
	// session cookie.
	SessionTTL time.Duration

	// Hooks adjust the query returned by the state route.
	Hooks []grid.QueryHook
}

// Server holds the HTTP handlers.
type Server struct {
	catalog    *catalog.Catalog
	sessions   SessionStore
	settings   types.SettingsStore
	reconciler *grid.Reconciler
	logger     *slog.Logger
	sessionTTL time.Duration
	hooks      []grid.QueryHook
}

// New creates a Server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog:    cfg.Catalog,
		sessions:   cfg.Sessions,
		settings:   cfg.Settings,
		reconciler: grid.NewReconciler(cfg.Sessions, cfg.Settings, grid.WithLogger(logger)),
		logger:     logger,
		sessionTTL: cfg.SessionTTL,
		hooks:      cfg.Hooks,
	}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(&router.RouterGroup)
	return router
}

// RegisterRoutes registers the API on rg.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	grids := rg.Group("/grids")
	{
		grids.GET("", s.HandleListGrids)
		grids.GET("/:grid/state", s.HandleState)
		grids.GET("/:grid/settings", s.HandleGetSettings)
		grids.DELETE("/:grid/settings", s.HandleDeleteSettings)
	}
	rg.GET("/session", s.HandleGetSession)
	rg.DELETE("/session", s.HandleDeleteSession)
	rg.GET("/healthz", s.HandleHealth)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HTTPServer returns an http.Server serving Router on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger tags each request with an ID and logs its outcome.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := getOrCreateRequestID(c)
		c.Next()
		s.logger.Debug("request",
			"request_id", requestID,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// requestIDKey stores the request ID in the gin context.
const requestIDKey = "request_id"

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDKey, requestID)
	c.Header(RequestIDHeader, requestID)
	return requestID
}
