package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	filesDTO "github.com/allisson/hsmvault/internal/files/http/dto"
	filesUseCase "github.com/allisson/hsmvault/internal/files/usecase"
)

// RunEncryptFile encrypts a stored artifact into name.encrypted and name.dek.
// When source is set the local file is uploaded first; name then defaults to
// the base name of source.
func RunEncryptFile(
	ctx context.Context,
	fileUseCase filesUseCase.FileUseCase,
	logger *slog.Logger,
	writer io.Writer,
	name string,
	source string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	if source != "" {
		if name == "" {
			name = filepath.Base(source)
		}
		data, err := os.ReadFile(source)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		if _, err := fileUseCase.Upload(ctx, name, data); err != nil {
			return fmt.Errorf("failed to upload source file: %w", err)
		}
		logger.Info("source file uploaded", slog.String("name", name), slog.Int("size", len(data)))
	}

	if name == "" {
		return fmt.Errorf("a file name or --source is required")
	}

	result, err := fileUseCase.Encrypt(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to encrypt file: %w", err)
	}

	logger.Info("file encrypted",
		slog.String("name", result.OriginalFilename),
		slog.String("encrypted", result.EncryptedFilename),
		slog.String("dek", result.DEKFilename),
	)

	if format == "json" {
		return writeJSON(writer, filesDTO.MapEncryptResultToResponse(result))
	}

	_, err = fmt.Fprintf(writer,
		"Encrypted %s (%d bytes)\n  envelope: %s (%d bytes)\n  wrapped DEK: %s\n",
		result.OriginalFilename,
		result.OriginalSize,
		result.EncryptedFilename,
		result.EncryptedSize,
		result.DEKFilename,
	)
	return err
}
