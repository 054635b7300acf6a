// Package http provides HTTP handlers for file upload, download and protection.
package http

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/hsmvault/internal/files/http/dto"
	filesUseCase "github.com/allisson/hsmvault/internal/files/usecase"
	"github.com/allisson/hsmvault/internal/httputil"
	customValidation "github.com/allisson/hsmvault/internal/validation"
)

// FileHandler handles HTTP requests for file artifacts.
type FileHandler struct {
	fileUseCase   filesUseCase.FileUseCase
	maxUploadSize int64
	logger        *slog.Logger
}

// NewFileHandler creates a new file handler. Uploads larger than maxUploadSize bytes are rejected.
func NewFileHandler(fileUseCase filesUseCase.FileUseCase, maxUploadSize int64, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		fileUseCase:   fileUseCase,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// UploadHandler stores the multipart field "file" under its original name.
// POST /api/files/upload - Returns 201 Created with the stored file metadata.
func (h *FileHandler) UploadHandler(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("missing multipart field 'file': %w", err), h.logger)
		return
	}
	if header.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, httputil.ErrorResponse{
			Error:   "payload_too_large",
			Message: fmt.Sprintf("file exceeds %d bytes", h.maxUploadSize),
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	info, err := h.fileUseCase.Upload(c.Request.Context(), header.Filename, data)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapFileToResponse(info))
}

// ListHandler lists stored artifacts.
// GET /api/files/list
func (h *FileHandler) ListHandler(c *gin.Context) {
	files, err := h.fileUseCase.List(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFilesToListResponse(files))
}

// DownloadHandler streams an artifact as an attachment.
// GET /api/files/download/:name
func (h *FileHandler) DownloadHandler(c *gin.Context) {
	name := c.Param("name")

	reader, size, err := h.fileUseCase.Download(c.Request.Context(), name)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer func() { _ = reader.Close() }()

	c.DataFromReader(http.StatusOK, size, "application/octet-stream", reader, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}

// EncryptHandler encrypts a stored artifact into name.encrypted and name.dek.
// POST /api/encrypt/process/:name
func (h *FileHandler) EncryptHandler(c *gin.Context) {
	result, err := h.fileUseCase.Encrypt(c.Request.Context(), c.Param("name"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEncryptResultToResponse(result))
}

// DecryptHandler restores the plaintext of an artifact pair.
// POST /api/decrypt/process
func (h *FileHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptFileRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.fileUseCase.Decrypt(c.Request.Context(), req.EncryptedFilename, req.DEKFilename)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapDecryptResultToResponse(result))
}
