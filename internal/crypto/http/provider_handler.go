// Package http provides HTTP handlers for inspecting and switching the KEK provider.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	"github.com/allisson/hsmvault/internal/crypto/http/dto"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
	"github.com/allisson/hsmvault/internal/httputil"
	customValidation "github.com/allisson/hsmvault/internal/validation"
)

// ProviderHandler handles HTTP requests for the KEK provider registry.
type ProviderHandler struct {
	registry cryptoUseCase.ProviderRegistry
	defaults cryptoDomain.ProviderDefaults
	logger   *slog.Logger
}

// NewProviderHandler creates a new provider handler.
func NewProviderHandler(
	registry cryptoUseCase.ProviderRegistry,
	defaults cryptoDomain.ProviderDefaults,
	logger *slog.Logger,
) *ProviderHandler {
	return &ProviderHandler{
		registry: registry,
		defaults: defaults,
		logger:   logger,
	}
}

// StatusHandler probes the active provider.
// GET /api/hsm/status - Returns 503 when no provider is active.
func (h *ProviderHandler) StatusHandler(c *gin.Context) {
	status, err := h.registry.Status(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// ConfigHandler switches the active provider.
// POST /api/hsm/config - On failure the previous provider keeps serving.
func (h *ProviderHandler) ConfigHandler(c *gin.Context) {
	var req dto.SwitchProviderRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	cfg, err := req.ToProviderConfig(h.defaults)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	status, err := h.registry.Switch(c.Request.Context(), cfg)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.logger.Info("KEK provider switched via API", slog.String("type", string(status.Type)))
	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// DefaultsHandler returns the environment defaults with secrets masked.
// GET /api/config/defaults
func (h *ProviderHandler) DefaultsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapDefaultsToResponse(h.defaults))
}
