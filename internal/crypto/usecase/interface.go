// Package usecase holds the envelope encryption business logic: the registry
// owning the active KEK provider and the DEK manager built on top of it.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

// ProviderRegistry owns the active KEK provider and replaces it at runtime.
//
// Wrap and Unwrap lease the active provider for the duration of one backend
// call. Switch never interrupts a leased call: the previous provider is retired
// only after every lease taken on it has been released.
type ProviderRegistry interface {
	// Switch validates cfg, builds and probes a candidate, and makes it active.
	// On any failure the previous provider keeps serving.
	Switch(ctx context.Context, cfg cryptoDomain.ProviderConfig) (*cryptoDomain.ProviderStatus, error)

	// Wrap protects key material with the active provider.
	Wrap(ctx context.Context, dek []byte) ([]byte, error)

	// Unwrap recovers key material with the active provider.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)

	// Status probes the active provider and reports its state and redacted config.
	// Returns ErrProviderNotActive when no provider has been activated.
	Status(ctx context.Context) (*cryptoDomain.ProviderStatus, error)

	// Active reports whether a provider is currently serving.
	Active() bool

	// Close retires the active provider and waits for pending retirements.
	Close(ctx context.Context) error
}

// DekManager generates and protects single-use data encryption keys.
type DekManager interface {
	// Generate returns 32 random bytes.
	Generate(ctx context.Context) ([]byte, error)

	// Protect wraps a DEK with the active provider.
	Protect(ctx context.Context, dek []byte) ([]byte, error)

	// Recover unwraps a DEK. The result is always 32 bytes.
	Recover(ctx context.Context, wrapped []byte) ([]byte, error)
}
