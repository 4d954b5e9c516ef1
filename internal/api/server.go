// Package api provides the admin HTTP API for SiteSync.
// It uses the Echo framework to expose the stored sites, trigger applies of
// declaration documents and run integrity scans.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"evalgo.org/sitesync/backend"
	"evalgo.org/sitesync/internal/apply"
	"evalgo.org/sitesync/internal/config"
	"evalgo.org/sitesync/internal/integrity"
	"evalgo.org/sitesync/internal/version"
)

// Store is what the server needs from persistence: units of work for applies
// and repairs, listings for reads and scans.
type Store interface {
	backend.Store
	backend.Lister
}

// Server represents the SiteSync API server.
type Server struct {
	echo      *echo.Echo
	store     Store
	config    *config.Config
	logger    zerolog.Logger
	applier   *apply.Service
	integrity *integrity.Service
	audit     *integrity.AuditLogger

	// applying serializes applies; a second request while one runs is refused.
	applying sync.Mutex
}

// New creates a new API server instance. audit may be nil.
func New(cfg *config.Config, store Store, logger zerolog.Logger, audit *integrity.AuditLogger) *Server {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Server.Debug
	e.HTTPErrorHandler = HTTPErrorHandler

	logger = logger.With().Str("component", "api").Logger()
	server := &Server{
		echo:      e,
		store:     store,
		config:    cfg,
		logger:    logger,
		applier:   apply.NewService(store, cfg.Placeholders, logger),
		integrity: integrity.NewService(store, logger, audit),
		audit:     audit,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	s.echo.Use(s.requestLogger)
	s.echo.Use(middleware.Recover())
	s.echo.Use(SecurityHeaders)

	if len(s.config.Security.AllowedOrigins) > 0 {
		s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: s.config.Security.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-API-Key"},
		}))
	}

	s.echo.Use(middleware.RequestID())

	if s.config.Security.RateLimit > 0 {
		s.echo.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(s.config.Security.RateLimit),
		)))
	}

	s.echo.Use(ValidateContentType)
	s.echo.Use(ValidateAcceptHeader)
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/", s.healthCheck)

	v1 := s.echo.Group("/api/v1")
	v1.Use(RequireAPIKey(s.config.Security.APIKeys))

	sites := v1.Group("/sites")
	sites.Use(ValidateQueryParams)
	sites.GET("", s.listSites)
	sites.GET("/:site", s.getSite, ValidateSiteName)
	sites.GET("/:site/pages", s.listPages, ValidateSiteName)
	sites.GET("/:site/content", s.listContent, ValidateSiteName)
	sites.GET("/:site/content/:name", s.getContent, ValidateSiteName)

	v1.POST("/apply", s.applyDeclarations, ValidateQueryParams)
	v1.POST("/validate", s.validateDeclarations)

	audit := v1.Group("/audit")
	audit.Use(ValidateQueryParams)
	audit.GET("", s.runAudit)
	audit.GET("/history", s.auditHistory)
}

// requestLogger logs every request through the server's zerolog logger.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		req := c.Request()
		res := c.Response()
		event := s.logger.Info()
		if res.Status >= http.StatusInternalServerError {
			event = s.logger.Error().Err(err)
		}
		event.
			Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
			Str("method", req.Method).
			Str("uri", req.RequestURI).
			Int("status", res.Status).
			Dur("latency", time.Since(start)).
			Msg("request")
		return nil
	}
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	addr := s.config.Server.Address()

	s.logger.Info().
		Str("address", addr).
		Bool("tls", s.config.Server.TLSEnabled).
		Bool("debug", s.config.Server.Debug).
		Msg("starting SiteSync API server")

	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout

	if s.config.Server.TLSEnabled {
		return s.echo.StartTLS(addr, s.config.Server.TLSCert, s.config.Server.TLSKey)
	}

	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server. The store stays open; its owner
// closes it.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down SiteSync API server")

	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}

	s.logger.Info().Msg("server shutdown complete")
	return nil
}

// healthCheck handles health check requests.
func (s *Server) healthCheck(c echo.Context) error {
	sites, err := s.store.ListSites(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:  "unhealthy",
			Service: "sitesync",
			Version: version.Version,
			Error:   err.Error(),
		})
	}

	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "sitesync",
		Version: version.Version,
		Sites:   len(sites),
	})
}

// ApplyLock returns the lock held while an apply or repair runs. Background
// jobs that mutate the store take it too.
func (s *Server) ApplyLock() *sync.Mutex {
	return &s.applying
}

// ServeHTTP allows Server to implement http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
