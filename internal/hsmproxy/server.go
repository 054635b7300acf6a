package hsmproxy

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apphttp "github.com/allisson/hsmvault/internal/http"
)

// maxBodySize bounds request bodies; wrap payloads are a few hundred bytes.
const maxBodySize = 64 << 10

// Server is the mTLS listener of the HSM proxy.
type Server struct {
	server  *http.Server
	handler *Handler
	logger  *slog.Logger
}

// NewServer creates a proxy server. Every connection must present a client
// certificate accepted by tlsConfig.
func NewServer(host string, port int, tlsConfig *tls.Config, handler *Handler, logger *slog.Logger) *Server {
	s := &Server{
		handler: handler,
		logger:  logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			TLSConfig:    tlsConfig,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.server.Handler = s.SetupRouter()
	return s
}

// SetupRouter builds the proxy routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(apphttp.RequestIDMiddleware())
	router.Use(apphttp.CustomLoggerMiddleware(s.logger, "/health"))
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)
		c.Next()
	})

	router.GET("/health", s.handler.HealthHandler)
	router.POST("/encrypt", s.handler.EncryptHandler)
	router.POST("/decrypt", s.handler.DecryptHandler)

	return router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start listens with TLS until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting hsm proxy", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start hsm proxy: %w", err)
	}

	return nil
}

// Serve accepts TLS connections on an existing listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("starting hsm proxy", slog.String("addr", listener.Addr().String()))

	if err := s.server.ServeTLS(listener, "", ""); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve hsm proxy: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the proxy.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down hsm proxy")
	return s.server.Shutdown(ctx)
}
