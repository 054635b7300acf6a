// Package hsmproxy implements the mTLS service that fronts a KEK provider,
// usually a PKCS#11 module, for remote callers.
package hsmproxy

import (
	"encoding/base64"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// Handler serves the remote wrap protocol on top of a provider registry.
type Handler struct {
	registry cryptoUseCase.ProviderRegistry
	logger   *slog.Logger
}

// NewHandler creates a proxy handler.
func NewHandler(registry cryptoUseCase.ProviderRegistry, logger *slog.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// HealthHandler probes the backing provider.
// GET /health
func (h *Handler) HealthHandler(c *gin.Context) {
	status, err := h.registry.Status(c.Request.Context())
	if err == nil && status.Healthy {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	if err == nil {
		h.logger.Warn("backing provider probe failed", slog.String("error", status.ProbeError))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"code":   cryptoDomain.RemoteCodeBackendUnavailable,
		})
		return
	}

	statusCode, code := failureCode(err)
	h.logger.Warn("backing provider not ready", slog.Any("error", err))
	c.JSON(statusCode, gin.H{"status": "unavailable", "code": code})
}

// EncryptHandler wraps base64 key material.
// POST /encrypt
func (h *Handler) EncryptHandler(c *gin.Context) {
	var req cryptoDomain.RemoteEncryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidInput, "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidInput, err.Error())
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidInput, err.Error())
		return
	}
	defer cryptoDomain.Zero(plaintext)

	wrapped, err := h.registry.Wrap(c.Request.Context(), plaintext)
	if err != nil {
		h.fail(c, "wrap", err)
		return
	}

	c.JSON(http.StatusOK, cryptoDomain.RemoteEncryptResponse{
		Ciphertext: base64.StdEncoding.EncodeToString(wrapped),
	})
}

// DecryptHandler unwraps base64 key material.
// POST /decrypt
func (h *Handler) DecryptHandler(c *gin.Context) {
	var req cryptoDomain.RemoteDecryptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidInput, "malformed request body")
		return
	}
	if err := req.Validate(); err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidCiphertext, err.Error())
		return
	}

	wrapped, err := base64.StdEncoding.DecodeString(req.Ciphertext)
	if err != nil {
		h.reject(c, cryptoDomain.RemoteCodeInvalidCiphertext, err.Error())
		return
	}

	plaintext, err := h.registry.Unwrap(c.Request.Context(), wrapped)
	if err != nil {
		h.fail(c, "unwrap", err)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	c.JSON(http.StatusOK, cryptoDomain.RemoteDecryptResponse{
		Plaintext: base64.StdEncoding.EncodeToString(plaintext),
	})
}

func (h *Handler) reject(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": code})
}

// fail reports a provider failure by code only. Backend details stay in the log.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	statusCode, code := failureCode(err)
	h.logger.Error("provider operation failed",
		slog.String("operation", op),
		slog.String("code", code),
		slog.Any("error", err),
	)
	c.JSON(statusCode, gin.H{"error": http.StatusText(statusCode), "code": code})
}

// failureCode maps domain errors to the wire status and code. Order matters:
// invalid ciphertext and key size both wrap ErrInvalidInput.
func failureCode(err error) (int, string) {
	switch {
	case apperrors.Is(err, cryptoDomain.ErrInvalidCiphertext):
		return http.StatusBadRequest, cryptoDomain.RemoteCodeInvalidCiphertext
	case apperrors.Is(err, apperrors.ErrIntegrity):
		return http.StatusUnprocessableEntity, cryptoDomain.RemoteCodeIntegrityFailure
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest, cryptoDomain.RemoteCodeInvalidInput
	case apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, cryptoDomain.RemoteCodeNotFound
	case apperrors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, cryptoDomain.RemoteCodeAuthFailure
	case apperrors.Is(err, apperrors.ErrTimeout):
		return http.StatusGatewayTimeout, cryptoDomain.RemoteCodeTimeout
	default:
		return http.StatusServiceUnavailable, cryptoDomain.RemoteCodeBackendUnavailable
	}
}
