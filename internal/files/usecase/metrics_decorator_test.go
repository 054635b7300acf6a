package usecase

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
	filesUsecaseMocks "github.com/allisson/hsmvault/internal/files/usecase/mocks"
	"github.com/allisson/hsmvault/internal/metrics"
)

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics for testing.
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func TestFileUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		operation string
		status    string
		setup     func(uc *filesUsecaseMocks.MockFileUseCase)
		call      func(uc FileUseCase) error
	}{
		{
			name:      "Upload_Success",
			operation: "file_upload",
			status:    "success",
			setup: func(uc *filesUsecaseMocks.MockFileUseCase) {
				uc.On("Upload", ctx, "a.txt", []byte("x")).Return(&filesDomain.FileInfo{Name: "a.txt"}, nil)
			},
			call: func(uc FileUseCase) error {
				_, err := uc.Upload(ctx, "a.txt", []byte("x"))
				return err
			},
		},
		{
			name:      "List_Error",
			operation: "file_list",
			status:    "error",
			setup: func(uc *filesUsecaseMocks.MockFileUseCase) {
				uc.On("List", ctx).Return(nil, filesDomain.ErrStorage)
			},
			call: func(uc FileUseCase) error {
				_, err := uc.List(ctx)
				return err
			},
		},
		{
			name:      "Download_Success",
			operation: "file_download",
			status:    "success",
			setup: func(uc *filesUsecaseMocks.MockFileUseCase) {
				uc.On("Download", ctx, "a.txt").Return(io.NopCloser(strings.NewReader("x")), int64(1), nil)
			},
			call: func(uc FileUseCase) error {
				_, _, err := uc.Download(ctx, "a.txt")
				return err
			},
		},
		{
			name:      "Encrypt_Error",
			operation: "file_encrypt",
			status:    "error",
			setup: func(uc *filesUsecaseMocks.MockFileUseCase) {
				uc.On("Encrypt", ctx, "a.txt").Return(nil, filesDomain.ErrFileNotFound)
			},
			call: func(uc FileUseCase) error {
				_, err := uc.Encrypt(ctx, "a.txt")
				return err
			},
		},
		{
			name:      "Decrypt_Success",
			operation: "file_decrypt",
			status:    "success",
			setup: func(uc *filesUsecaseMocks.MockFileUseCase) {
				uc.On("Decrypt", ctx, "a.txt.encrypted", "a.txt.dek").
					Return(&filesDomain.DecryptResult{OriginalFilename: "a.txt"}, nil)
			},
			call: func(uc FileUseCase) error {
				_, err := uc.Decrypt(ctx, "a.txt.encrypted", "a.txt.dek")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useCase := &filesUsecaseMocks.MockFileUseCase{}
			m := &mockBusinessMetrics{}
			tt.setup(useCase)
			m.On("RecordOperation", ctx, "files", tt.operation, tt.status).Return().Once()
			m.On("RecordDuration", ctx, "files", tt.operation, mock.AnythingOfType("time.Duration"), tt.status).
				Return().
				Once()

			err := tt.call(NewFileUseCaseWithMetrics(useCase, m))

			if tt.status == "success" {
				require.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			useCase.AssertExpectations(t)
			m.AssertExpectations(t)
		})
	}
}
