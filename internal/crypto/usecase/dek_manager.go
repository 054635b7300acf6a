package usecase

import (
	"context"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// dekManager implements DekManager on top of the provider registry.
// Keys are never cached: every Recover goes to the backend.
type dekManager struct {
	registry ProviderRegistry
}

// NewDekManager creates a DekManager backed by registry.
func NewDekManager(registry ProviderRegistry) DekManager {
	return &dekManager{registry: registry}
}

// Generate returns a fresh 32-byte key from crypto/rand.
func (d *dekManager) Generate(ctx context.Context) ([]byte, error) {
	dek := make([]byte, cryptoDomain.DEKSize)
	if _, err := rand.Read(dek); err != nil {
		return nil, fmt.Errorf("failed to generate DEK: %w", err)
	}
	return dek, nil
}

// Protect wraps dek with the active provider. Errors are returned unchanged.
func (d *dekManager) Protect(ctx context.Context, dek []byte) ([]byte, error) {
	if len(dek) != cryptoDomain.DEKSize {
		return nil, apperrors.Wrap(
			cryptoDomain.ErrInvalidKeySize,
			fmt.Sprintf("expected %d bytes, got %d", cryptoDomain.DEKSize, len(dek)),
		)
	}
	return d.registry.Wrap(ctx, dek)
}

// Recover unwraps a protected DEK and rejects results that are not 32 bytes.
func (d *dekManager) Recover(ctx context.Context, wrapped []byte) ([]byte, error) {
	dek, err := d.registry.Unwrap(ctx, wrapped)
	if err != nil {
		return nil, err
	}
	if len(dek) != cryptoDomain.DEKSize {
		cryptoDomain.Zero(dek)
		return nil, apperrors.Wrap(
			cryptoDomain.ErrIntegrityFailure,
			fmt.Sprintf("recovered key has %d bytes", len(dek)),
		)
	}
	return dek, nil
}
