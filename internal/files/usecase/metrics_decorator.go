package usecase

import (
	"context"
	"io"
	"time"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
	"github.com/allisson/hsmvault/internal/metrics"
)

// fileUseCaseWithMetrics decorates FileUseCase with metrics instrumentation.
type fileUseCaseWithMetrics struct {
	next    FileUseCase
	metrics metrics.BusinessMetrics
}

// NewFileUseCaseWithMetrics wraps a FileUseCase with metrics recording.
func NewFileUseCaseWithMetrics(useCase FileUseCase, m metrics.BusinessMetrics) FileUseCase {
	return &fileUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Upload records metrics for file uploads.
func (f *fileUseCaseWithMetrics) Upload(
	ctx context.Context,
	name string,
	data []byte,
) (*filesDomain.FileInfo, error) {
	start := time.Now()
	info, err := f.next.Upload(ctx, name, data)
	f.record(ctx, "file_upload", start, err)
	return info, err
}

// List records metrics for file listings.
func (f *fileUseCaseWithMetrics) List(ctx context.Context) ([]*filesDomain.FileInfo, error) {
	start := time.Now()
	files, err := f.next.List(ctx)
	f.record(ctx, "file_list", start, err)
	return files, err
}

// Download records metrics for file downloads.
func (f *fileUseCaseWithMetrics) Download(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	start := time.Now()
	reader, size, err := f.next.Download(ctx, name)
	f.record(ctx, "file_download", start, err)
	return reader, size, err
}

// Encrypt records metrics for file encryption.
func (f *fileUseCaseWithMetrics) Encrypt(ctx context.Context, name string) (*filesDomain.EncryptResult, error) {
	start := time.Now()
	result, err := f.next.Encrypt(ctx, name)
	f.record(ctx, "file_encrypt", start, err)
	return result, err
}

// Decrypt records metrics for file decryption.
func (f *fileUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	encryptedName, dekName string,
) (*filesDomain.DecryptResult, error) {
	start := time.Now()
	result, err := f.next.Decrypt(ctx, encryptedName, dekName)
	f.record(ctx, "file_decrypt", start, err)
	return result, err
}

func (f *fileUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	f.metrics.RecordOperation(ctx, "files", operation, status)
	f.metrics.RecordDuration(ctx, "files", operation, time.Since(start), status)
}
