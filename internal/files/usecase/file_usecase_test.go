package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
	cryptoUsecase "github.com/allisson/hsmvault/internal/crypto/usecase"
	cryptoUsecaseMocks "github.com/allisson/hsmvault/internal/crypto/usecase/mocks"
	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
	"github.com/allisson/hsmvault/internal/files/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMemRepository(t *testing.T) *repository.BlobRepository {
	t.Helper()
	repo := repository.NewBlobRepository(memblob.OpenBucket(nil))
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// newSimulatedDekManager wires a real registry with a simulated provider.
func newSimulatedDekManager(t *testing.T) cryptoUsecase.DekManager {
	t.Helper()
	ctx := context.Background()
	logger := discardLogger()

	registry := cryptoUsecase.NewProviderRegistry(cryptoService.NewProviderFactory(nil, nil, logger), logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = registry.Close(ctx)
	})

	_, err := registry.Switch(ctx, cryptoDomain.ProviderConfig{
		Type:      cryptoDomain.ProviderSimulated,
		Simulated: &cryptoDomain.SimulatedConfig{KeyFilePath: filepath.Join(t.TempDir(), "simulated_kek.key")},
	})
	require.NoError(t, err)

	return cryptoUsecase.NewDekManager(registry)
}

// failingRepository fails writes whose name ends with failSuffix.
type failingRepository struct {
	*repository.BlobRepository
	failSuffix string
}

func (r *failingRepository) Write(ctx context.Context, name string, data []byte) error {
	if strings.HasSuffix(name, r.failSuffix) {
		return filesDomain.ErrStorage
	}
	return r.BlobRepository.Write(ctx, name, data)
}

func TestFileUseCase_UploadListDownload(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepository(t)
	uc := NewFileUseCase(repo, &cryptoUsecaseMocks.MockDekManager{}, cryptoService.NewEnvelopeCipher(), discardLogger())

	info, err := uc.Upload(ctx, "a.txt", []byte("Hello, World!"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", info.Name)
	assert.Equal(t, int64(13), info.Size)

	files, err := uc.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].Name)

	reader, size, err := uc.Download(ctx, "a.txt")
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()
	assert.Equal(t, int64(13), size)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello, World!"), data)

	_, err = uc.Upload(ctx, "../escape", []byte("x"))
	assert.ErrorIs(t, err, filesDomain.ErrInvalidFileName)
}

func TestFileUseCase_EncryptDecrypt(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_RoundTrip", func(t *testing.T) {
		repo := newMemRepository(t)
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("Hello, World!")))

		result, err := uc.Encrypt(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", result.OriginalFilename)
		assert.Equal(t, int64(13), result.OriginalSize)
		assert.Equal(t, "a.txt.encrypted", result.EncryptedFilename)
		assert.Equal(t, int64(41), result.EncryptedSize)
		assert.Equal(t, "a.txt.dek", result.DEKFilename)

		storedDEK, err := repo.Read(ctx, "a.txt.dek")
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString(storedDEK), result.EncryptedDEK)

		require.NoError(t, repo.Delete(ctx, "a.txt"))

		restored, err := uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
		require.NoError(t, err)
		assert.Equal(t, "a.txt", restored.OriginalFilename)
		assert.Equal(t, int64(13), restored.Size)

		data, err := repo.Read(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("Hello, World!"), data)
	})

	t.Run("Success_EmptyFile", func(t *testing.T) {
		repo := newMemRepository(t)
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "empty", []byte{}))

		result, err := uc.Encrypt(ctx, "empty")
		require.NoError(t, err)
		assert.Equal(t, int64(28), result.EncryptedSize)

		restored, err := uc.Decrypt(ctx, "empty.encrypted", "empty.dek")
		require.NoError(t, err)
		assert.Equal(t, "empty", restored.OriginalFilename)
		assert.Equal(t, int64(0), restored.Size)
	})

	t.Run("Success_NameWithoutSuffix", func(t *testing.T) {
		repo := newMemRepository(t)
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("payload")))
		_, err := uc.Encrypt(ctx, "a.txt")
		require.NoError(t, err)

		envelope, err := repo.Read(ctx, "a.txt.encrypted")
		require.NoError(t, err)
		require.NoError(t, repo.Write(ctx, "blob.bin", envelope))

		restored, err := uc.Decrypt(ctx, "blob.bin", "a.txt.dek")
		require.NoError(t, err)
		assert.Equal(t, "blob.bin.restored", restored.OriginalFilename)
	})

	t.Run("Error_TamperedEnvelope", func(t *testing.T) {
		repo := newMemRepository(t)
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("payload")))
		_, err := uc.Encrypt(ctx, "a.txt")
		require.NoError(t, err)
		require.NoError(t, repo.Delete(ctx, "a.txt"))

		envelope, err := repo.Read(ctx, "a.txt.encrypted")
		require.NoError(t, err)
		envelope[len(envelope)-1] ^= 0x01
		require.NoError(t, repo.Write(ctx, "a.txt.encrypted", envelope))

		_, err = uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
		assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityFailure)

		ok, err := repo.Exists(ctx, "a.txt")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error_MissingArtifacts", func(t *testing.T) {
		repo := newMemRepository(t)
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())

		_, err := uc.Encrypt(ctx, "missing.txt")
		assert.ErrorIs(t, err, filesDomain.ErrFileNotFound)

		_, err = uc.Decrypt(ctx, "missing.txt.encrypted", "missing.txt.dek")
		assert.ErrorIs(t, err, filesDomain.ErrFileNotFound)
	})

	t.Run("Error_InvalidNames", func(t *testing.T) {
		dekManager := &cryptoUsecaseMocks.MockDekManager{}
		uc := NewFileUseCase(newMemRepository(t), dekManager, cryptoService.NewEnvelopeCipher(), discardLogger())

		_, err := uc.Encrypt(ctx, "../a.txt")
		assert.ErrorIs(t, err, filesDomain.ErrInvalidFileName)

		_, err = uc.Decrypt(ctx, "a.txt.encrypted", "../a.txt.dek")
		assert.ErrorIs(t, err, filesDomain.ErrInvalidFileName)

		dekManager.AssertNotCalled(t, "Generate", mock.Anything)
		dekManager.AssertNotCalled(t, "Recover", mock.Anything, mock.Anything)
	})
}

func TestFileUseCase_EncryptFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_WrapFailureWritesNothing", func(t *testing.T) {
		repo := newMemRepository(t)
		dekManager := &cryptoUsecaseMocks.MockDekManager{}
		dek := bytes.Repeat([]byte{4}, 32)
		dekManager.On("Generate", ctx).Return(dek, nil).Once()
		dekManager.On("Protect", ctx, mock.Anything).Return(nil, cryptoDomain.ErrBackendUnavailable).Once()
		uc := NewFileUseCase(repo, dekManager, cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("payload")))

		_, err := uc.Encrypt(ctx, "a.txt")
		assert.ErrorIs(t, err, cryptoDomain.ErrBackendUnavailable)

		files, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, files, 1)
		assert.Equal(t, "a.txt", files[0].Name)
		assert.Equal(t, make([]byte, 32), dek)
	})

	t.Run("Error_SecondWriteRollsBackEnvelope", func(t *testing.T) {
		repo := &failingRepository{BlobRepository: newMemRepository(t), failSuffix: filesDomain.DEKSuffix}
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("payload")))

		_, err := uc.Encrypt(ctx, "a.txt")
		assert.ErrorIs(t, err, filesDomain.ErrStorage)

		ok, err := repo.Exists(ctx, "a.txt.encrypted")
		require.NoError(t, err)
		assert.False(t, ok)
		ok, err = repo.Exists(ctx, "a.txt.dek")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Error_SecondWriteRestoresPreviousPair", func(t *testing.T) {
		repo := &failingRepository{BlobRepository: newMemRepository(t), failSuffix: ".none"}
		uc := NewFileUseCase(repo, newSimulatedDekManager(t), cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("first version")))
		_, err := uc.Encrypt(ctx, "a.txt")
		require.NoError(t, err)

		oldEnvelope, err := repo.Read(ctx, "a.txt.encrypted")
		require.NoError(t, err)
		oldDEK, err := repo.Read(ctx, "a.txt.dek")
		require.NoError(t, err)

		require.NoError(t, repo.Write(ctx, "a.txt", []byte("second version")))
		repo.failSuffix = filesDomain.DEKSuffix
		_, err = uc.Encrypt(ctx, "a.txt")
		assert.ErrorIs(t, err, filesDomain.ErrStorage)

		envelope, err := repo.Read(ctx, "a.txt.encrypted")
		require.NoError(t, err)
		assert.Equal(t, oldEnvelope, envelope)
		wrapped, err := repo.Read(ctx, "a.txt.dek")
		require.NoError(t, err)
		assert.Equal(t, oldDEK, wrapped)

		repo.failSuffix = ".none"
		_, err = uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
		require.NoError(t, err)
		restored, err := repo.Read(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("first version"), restored)
	})

	t.Run("Success_DEKZeroed", func(t *testing.T) {
		repo := newMemRepository(t)
		dekManager := &cryptoUsecaseMocks.MockDekManager{}
		dek := bytes.Repeat([]byte{4}, 32)
		dekManager.On("Generate", ctx).Return(dek, nil).Once()
		dekManager.On("Protect", ctx, mock.Anything).Return([]byte("wrapped"), nil).Once()
		uc := NewFileUseCase(repo, dekManager, cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt", []byte("payload")))

		result, err := uc.Encrypt(ctx, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("wrapped")), result.EncryptedDEK)
		assert.Equal(t, make([]byte, 32), dek)
	})
}

func TestFileUseCase_DecryptFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("Error_UnwrapFailure", func(t *testing.T) {
		repo := newMemRepository(t)
		dekManager := &cryptoUsecaseMocks.MockDekManager{}
		dekManager.On("Recover", ctx, []byte("wrapped")).Return(nil, cryptoDomain.ErrAuthFailure).Once()
		uc := NewFileUseCase(repo, dekManager, cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt.dek", []byte("wrapped")))
		require.NoError(t, repo.Write(ctx, "a.txt.encrypted", make([]byte, 40)))

		_, err := uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthFailure)
	})

	t.Run("Error_ShortEnvelope", func(t *testing.T) {
		repo := newMemRepository(t)
		dekManager := &cryptoUsecaseMocks.MockDekManager{}
		dek := bytes.Repeat([]byte{4}, 32)
		dekManager.On("Recover", ctx, []byte("wrapped")).Return(dek, nil).Once()
		uc := NewFileUseCase(repo, dekManager, cryptoService.NewEnvelopeCipher(), discardLogger())
		require.NoError(t, repo.Write(ctx, "a.txt.dek", []byte("wrapped")))
		require.NoError(t, repo.Write(ctx, "a.txt.encrypted", make([]byte, 27)))

		_, err := uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
		assert.Equal(t, make([]byte, 32), dek)
	})
}
