package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
	filesDTO "github.com/allisson/hsmvault/internal/files/http/dto"
	filesUseCase "github.com/allisson/hsmvault/internal/files/usecase"
)

// RunDecryptFile restores the plaintext of a stored envelope. An empty dekName
// selects the sidecar written by encrypt-file.
func RunDecryptFile(
	ctx context.Context,
	fileUseCase filesUseCase.FileUseCase,
	logger *slog.Logger,
	writer io.Writer,
	encryptedName string,
	dekName string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if encryptedName == "" {
		return fmt.Errorf("an encrypted file name is required")
	}
	if dekName == "" {
		dekName = DefaultDEKName(encryptedName)
	}

	result, err := fileUseCase.Decrypt(ctx, encryptedName, dekName)
	if err != nil {
		return fmt.Errorf("failed to decrypt file: %w", err)
	}

	logger.Info("file decrypted",
		slog.String("encrypted", encryptedName),
		slog.String("restored", result.OriginalFilename),
	)

	if format == "json" {
		return writeJSON(writer, filesDTO.MapDecryptResultToResponse(result))
	}

	_, err = fmt.Fprintf(writer, "Decrypted %s into %s (%d bytes)\n", encryptedName, result.OriginalFilename, result.Size)
	return err
}

// DefaultDEKName returns the sidecar name encrypt-file pairs with encryptedName.
func DefaultDEKName(encryptedName string) string {
	return strings.TrimSuffix(encryptedName, filesDomain.EncryptedSuffix) + filesDomain.DEKSuffix
}
