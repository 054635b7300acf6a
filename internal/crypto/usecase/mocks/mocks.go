// Package mocks provides mock implementations of the crypto use cases for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

// MockProviderRegistry is a mock implementation of ProviderRegistry.
type MockProviderRegistry struct {
	mock.Mock
}

// Switch mocks the Switch method of ProviderRegistry.
func (m *MockProviderRegistry) Switch(
	ctx context.Context,
	cfg cryptoDomain.ProviderConfig,
) (*cryptoDomain.ProviderStatus, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.ProviderStatus), args.Error(1)
}

// Wrap mocks the Wrap method of ProviderRegistry.
func (m *MockProviderRegistry) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	args := m.Called(ctx, dek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Unwrap mocks the Unwrap method of ProviderRegistry.
func (m *MockProviderRegistry) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	args := m.Called(ctx, wrapped)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Status mocks the Status method of ProviderRegistry.
func (m *MockProviderRegistry) Status(ctx context.Context) (*cryptoDomain.ProviderStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.ProviderStatus), args.Error(1)
}

// Active mocks the Active method of ProviderRegistry.
func (m *MockProviderRegistry) Active() bool {
	args := m.Called()
	return args.Bool(0)
}

// Close mocks the Close method of ProviderRegistry.
func (m *MockProviderRegistry) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockDekManager is a mock implementation of DekManager.
type MockDekManager struct {
	mock.Mock
}

// Generate mocks the Generate method of DekManager.
func (m *MockDekManager) Generate(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Protect mocks the Protect method of DekManager.
func (m *MockDekManager) Protect(ctx context.Context, dek []byte) ([]byte, error) {
	args := m.Called(ctx, dek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Recover mocks the Recover method of DekManager.
func (m *MockDekManager) Recover(ctx context.Context, wrapped []byte) ([]byte, error) {
	args := m.Called(ctx, wrapped)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
