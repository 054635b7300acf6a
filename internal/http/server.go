// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/allisson/hsmvault/internal/config"
	cryptoHTTP "github.com/allisson/hsmvault/internal/crypto/http"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
	filesHTTP "github.com/allisson/hsmvault/internal/files/http"
	"github.com/allisson/hsmvault/internal/metrics"
)

// readinessTimeout bounds the storage check of /ready.
const readinessTimeout = 2 * time.Second

// StoragePinger reports whether the artifact store is reachable.
type StoragePinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	router   *gin.Engine
	server   *http.Server
	logger   *slog.Logger
	registry cryptoUseCase.ProviderRegistry
	storage  StoragePinger
}

// NewServer creates a new HTTP server. Call SetupRouter before Start.
func NewServer(
	registry cryptoUseCase.ProviderRegistry,
	storage StoragePinger,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		logger:   logger,
		registry: registry,
		storage:  storage,
		server: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", host, port),
			ReadHeaderTimeout: 15 * time.Second,
			// Artifact transfers can be large.
			ReadTimeout:  10 * time.Minute,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter builds the API routes. ctx bounds background work owned by the
// middleware chain, such as rate limiter cleanup.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	fileHandler *filesHTTP.FileHandler,
	providerHandler *cryptoHTTP.ProviderHandler,
	metricsProvider *metrics.Provider,
	metricsNamespace string,
) {
	router := gin.New()
	router.MaxMultipartMemory = 32 << 20

	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(CustomLoggerMiddleware(s.logger, "/health", "/ready"))

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), metricsNamespace))
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	api := router.Group("/api")
	if cfg.RateLimitEnabled {
		api.Use(RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}

	files := api.Group("/files")
	{
		files.POST("/upload", fileHandler.UploadHandler)
		files.GET("/list", fileHandler.ListHandler)
		files.GET("/download/:name", fileHandler.DownloadHandler)
	}

	api.POST("/encrypt/process/:name", fileHandler.EncryptHandler)
	api.POST("/decrypt/process", fileHandler.DecryptHandler)

	hsm := api.Group("/hsm")
	{
		hsm.GET("/status", providerHandler.StatusHandler)
		hsm.POST("/config", providerHandler.ConfigHandler)
	}

	api.GET("/config/defaults", providerHandler.DefaultsHandler)

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler is ready only with an active KEK provider and a reachable store.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{
		"kek_provider": "ok",
		"storage":      "ok",
	}
	ready := true

	if s.registry == nil || !s.registry.Active() {
		components["kek_provider"] = "error"
		ready = false
	}

	if s.storage == nil {
		components["storage"] = "error"
		ready = false
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := s.storage.Ping(ctx); err != nil {
			s.logger.Warn("storage not reachable", slog.Any("error", err))
			components["storage"] = "error"
			ready = false
		}
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":     "not_ready",
			"components": components,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ready",
		"components": components,
	})
}
