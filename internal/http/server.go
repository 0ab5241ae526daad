// Package http provides the HTTP API for docpipe.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/contaspt/docpipe/internal/classifier"
	"github.com/contaspt/docpipe/internal/docrouter"
	"github.com/contaspt/docpipe/internal/docsource"
	"github.com/contaspt/docpipe/internal/indexer"
	"github.com/contaspt/docpipe/internal/provenance"
	"github.com/contaspt/docpipe/internal/rag"
	"github.com/contaspt/docpipe/internal/tenant"
)

// TenantHeader carries the calling tenant on API requests.
const TenantHeader = "X-Tenant-ID"

// Server provides HTTP endpoints for docpipe.
type Server struct {
	echo       *echo.Echo
	rag        *rag.Service
	router     *docrouter.Router
	provenance *provenance.Manager
	indexer    *indexer.Service
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server. The indexer may be nil when the
// process runs without scheduled indexing; its endpoints then return 503.
func NewServer(ragSvc *rag.Service, router *docrouter.Router, prov *provenance.Manager, idx *indexer.Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if ragSvc == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if router == nil {
		return nil, fmt.Errorf("document router cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		rag:        ragSvc,
		router:     router,
		provenance: prov,
		indexer:    idx,
		logger:     logger,
		config:     cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	// Health check and metrics
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API v1 routes, all tenant-scoped
	v1 := s.echo.Group("/api/v1", s.tenantMiddleware)
	v1.POST("/query", s.handleQuery)
	v1.POST("/route", s.handleRoute)
	v1.GET("/documents/:id/provenance", s.handleProvenance)
	v1.POST("/indexer/scan", s.handleScan)
	v1.GET("/indexer/stats", s.handleStats)
}

// tenantMiddleware requires the tenant header and injects tenant info
// into the request context. No header means no data, never all tenants.
func (s *Server) tenantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		tenantID := c.Request().Header.Get(TenantHeader)
		if tenantID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, TenantHeader+" header is required")
		}

		ctx := tenant.NewContext(c.Request().Context(), &tenant.Info{TenantID: tenantID})
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// RouteRequest is the request body for POST /api/v1/route.
type RouteRequest struct {
	DocumentID string `json:"document_id"`
	Content    string `json:"content"`
	Filename   string `json:"filename"`
	MimeType   string `json:"mime_type"`
}

// ScanResponse is the response body for POST /api/v1/indexer/scan.
type ScanResponse struct {
	Scan *indexer.ScanStats `json:"scan"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleQuery answers a retrieval query for the calling tenant.
func (s *Server) handleQuery(c echo.Context) error {
	var req rag.Query
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}

	response := s.rag.Query(c.Request().Context(), req)
	return c.JSON(http.StatusOK, response)
}

// handleRoute runs one document through classification, extraction and
// consensus, and returns the routing result.
func (s *Server) handleRoute(c echo.Context) error {
	var req RouteRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid route request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}
	if req.DocumentID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "document_id field is required")
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = docsource.MimeTypeForName(req.Filename)
	}
	meta := classifier.FileMetadata{Filename: req.Filename, MimeType: mimeType}

	result := s.router.RouteDocument(c.Request().Context(), []byte(req.Content), meta, req.DocumentID)
	return c.JSON(http.StatusOK, result)
}

// handleProvenance returns the stored provenance trail for a document.
func (s *Server) handleProvenance(c echo.Context) error {
	if s.provenance == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "provenance is not enabled")
	}

	documentID := c.Param("id")
	trail, err := s.provenance.GetDocumentProvenance(c.Request().Context(), documentID)
	if err != nil {
		s.logger.Warn("provenance lookup failed",
			zap.String("document_id", documentID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "provenance lookup failed")
	}

	return c.JSON(http.StatusOK, trail)
}

// handleScan triggers one scan immediately. Pass full=true for a full
// rescan instead of an incremental one.
func (s *Server) handleScan(c echo.Context) error {
	if s.indexer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "indexing is not enabled")
	}

	full := c.QueryParam("full") == "true"
	stats, err := s.indexer.ForceScan(c.Request().Context(), full)
	if err != nil {
		s.logger.Warn("forced scan failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "scan failed")
	}

	return c.JSON(http.StatusOK, ScanResponse{Scan: stats})
}

// handleStats returns cumulative indexing statistics.
func (s *Server) handleStats(c echo.Context) error {
	if s.indexer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "indexing is not enabled")
	}

	return c.JSON(http.StatusOK, s.indexer.GetStats())
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
