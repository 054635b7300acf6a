// Package mocks provides mock implementations of the file use cases for testing.
package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
)

// MockFileUseCase is a mock implementation of FileUseCase.
type MockFileUseCase struct {
	mock.Mock
}

// Upload mocks the Upload method of FileUseCase.
func (m *MockFileUseCase) Upload(ctx context.Context, name string, data []byte) (*filesDomain.FileInfo, error) {
	args := m.Called(ctx, name, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*filesDomain.FileInfo), args.Error(1)
}

// List mocks the List method of FileUseCase.
func (m *MockFileUseCase) List(ctx context.Context) ([]*filesDomain.FileInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*filesDomain.FileInfo), args.Error(1)
}

// Download mocks the Download method of FileUseCase.
func (m *MockFileUseCase) Download(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(io.ReadCloser), args.Get(1).(int64), args.Error(2)
}

// Encrypt mocks the Encrypt method of FileUseCase.
func (m *MockFileUseCase) Encrypt(ctx context.Context, name string) (*filesDomain.EncryptResult, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*filesDomain.EncryptResult), args.Error(1)
}

// Decrypt mocks the Decrypt method of FileUseCase.
func (m *MockFileUseCase) Decrypt(
	ctx context.Context,
	encryptedName, dekName string,
) (*filesDomain.DecryptResult, error) {
	args := m.Called(ctx, encryptedName, dekName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*filesDomain.DecryptResult), args.Error(1)
}
