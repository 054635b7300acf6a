package usecase

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/hsmvault/internal/crypto/usecase"
	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
)

// fileUseCase implements FileUseCase.
type fileUseCase struct {
	repo       FileRepository
	dekManager cryptoUsecase.DekManager
	cipher     cryptoService.EnvelopeCipher
	logger     *slog.Logger
}

// NewFileUseCase creates a FileUseCase.
func NewFileUseCase(
	repo FileRepository,
	dekManager cryptoUsecase.DekManager,
	cipher cryptoService.EnvelopeCipher,
	logger *slog.Logger,
) FileUseCase {
	return &fileUseCase{
		repo:       repo,
		dekManager: dekManager,
		cipher:     cipher,
		logger:     logger,
	}
}

// Upload stores data under name.
func (f *fileUseCase) Upload(ctx context.Context, name string, data []byte) (*filesDomain.FileInfo, error) {
	if err := f.repo.Write(ctx, name, data); err != nil {
		return nil, err
	}
	return &filesDomain.FileInfo{
		Name:       name,
		Size:       int64(len(data)),
		ModifiedAt: time.Now().UTC(),
	}, nil
}

// List returns the stored artifacts.
func (f *fileUseCase) List(ctx context.Context) ([]*filesDomain.FileInfo, error) {
	return f.repo.List(ctx)
}

// Download opens the artifact stored under name.
func (f *fileUseCase) Download(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	return f.repo.Open(ctx, name)
}

// Encrypt seals the artifact under a fresh DEK and wraps the DEK before
// anything is written, so a provider failure leaves the store untouched.
func (f *fileUseCase) Encrypt(ctx context.Context, name string) (*filesDomain.EncryptResult, error) {
	encryptedName := filesDomain.EncryptedName(name)
	dekName := filesDomain.DEKName(name)
	for _, n := range []string{name, encryptedName, dekName} {
		if err := filesDomain.ValidateName(n); err != nil {
			return nil, err
		}
	}

	plaintext, err := f.repo.Read(ctx, name)
	if err != nil {
		return nil, err
	}

	dek, err := f.dekManager.Generate(ctx)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	envelope, err := f.cipher.Encrypt(plaintext, dek)
	if err != nil {
		return nil, err
	}

	wrapped, err := f.dekManager.Protect(ctx, dek)
	if err != nil {
		return nil, err
	}

	previous, err := f.readExisting(ctx, encryptedName)
	if err != nil {
		return nil, err
	}

	if err := f.repo.Write(ctx, encryptedName, envelope); err != nil {
		return nil, err
	}
	if err := f.repo.Write(ctx, dekName, wrapped); err != nil {
		f.rollback(ctx, encryptedName, previous)
		return nil, err
	}

	f.logger.Info("file encrypted",
		slog.String("file", name),
		slog.Int("original_size", len(plaintext)),
		slog.Int("encrypted_size", len(envelope)),
	)

	return &filesDomain.EncryptResult{
		OriginalFilename:  name,
		OriginalSize:      int64(len(plaintext)),
		EncryptedFilename: encryptedName,
		EncryptedSize:     int64(len(envelope)),
		DEKFilename:       dekName,
		EncryptedDEK:      base64.StdEncoding.EncodeToString(wrapped),
	}, nil
}

// Decrypt unwraps the DEK, opens the envelope and writes the restored plaintext.
func (f *fileUseCase) Decrypt(
	ctx context.Context,
	encryptedName, dekName string,
) (*filesDomain.DecryptResult, error) {
	restoredName := filesDomain.RestoredName(encryptedName)
	for _, n := range []string{encryptedName, dekName, restoredName} {
		if err := filesDomain.ValidateName(n); err != nil {
			return nil, err
		}
	}

	wrapped, err := f.repo.Read(ctx, dekName)
	if err != nil {
		return nil, err
	}

	dek, err := f.dekManager.Recover(ctx, wrapped)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(dek)

	envelope, err := f.repo.Read(ctx, encryptedName)
	if err != nil {
		return nil, err
	}

	plaintext, err := f.cipher.Decrypt(envelope, dek)
	if err != nil {
		return nil, err
	}

	if err := f.repo.Write(ctx, restoredName, plaintext); err != nil {
		return nil, err
	}

	f.logger.Info("file decrypted",
		slog.String("file", encryptedName),
		slog.String("restored", restoredName),
	)

	return &filesDomain.DecryptResult{
		OriginalFilename: restoredName,
		Size:             int64(len(plaintext)),
	}, nil
}

// rollback removes a half-written artifact pair. It runs even if ctx was canceled.
// readExisting returns the artifact stored under name, or nil when there is none.
func (f *fileUseCase) readExisting(ctx context.Context, name string) ([]byte, error) {
	data, err := f.repo.Read(ctx, name)
	if errors.Is(err, filesDomain.ErrFileNotFound) {
		return nil, nil
	}
	return data, err
}

// rollback puts back the envelope that paired with the untouched DEK artifact,
// or removes the new envelope when none existed.
func (f *fileUseCase) rollback(ctx context.Context, name string, previous []byte) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if previous != nil {
		err = f.repo.Write(ctx, name, previous)
	} else {
		err = f.repo.Delete(ctx, name)
	}
	if err != nil {
		f.logger.Error("failed to roll back encrypted artifact",
			slog.String("file", name),
			slog.Any("error", err),
		)
	}
}
