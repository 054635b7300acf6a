// Package service provides cryptographic services for envelope encryption.
// Implements the AES-256-GCM envelope cipher and the KEK provider variants
// (simulated, PKCS#11, cloud KMS and remote mTLS) that wrap data encryption keys.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// EnvelopeCipher encrypts file bytes under a single-use DEK.
type EnvelopeCipher interface {
	// Encrypt returns nonce(12) || ciphertext || tag(16).
	Encrypt(plaintext, dek []byte) ([]byte, error)

	// Decrypt authenticates and decrypts an envelope. It never returns partial plaintext.
	Decrypt(envelope, dek []byte) ([]byte, error)
}

// KEKProvider wraps and unwraps DEKs under a backend-held key encryption key.
//
// All variants share the same contract and failure kinds. Wrap fails with
// ErrKeyNotFound, ErrAuthFailure, ErrBackendUnavailable or ErrBackendTimeout.
// Unwrap can additionally fail with ErrInvalidCiphertext and ErrIntegrityFailure.
// Only an instance in StateActive serves Wrap and Unwrap; a retired instance
// answers every call with ErrProviderRetired.
type KEKProvider interface {
	// Type returns the configuration tag this instance was built from.
	Type() cryptoDomain.ProviderType

	// State returns the current lifecycle state.
	State() cryptoDomain.ProviderState

	// Wrap protects 32 bytes of key material.
	Wrap(ctx context.Context, dek []byte) ([]byte, error)

	// Unwrap recovers 32 bytes of key material.
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)

	// Probe performs a liveness and credential check. Success moves an
	// uninitialized instance to StateActive.
	Probe(ctx context.Context) error

	// Retire releases sessions, connections and native handles. It is idempotent.
	Retire(ctx context.Context) error
}

// ProviderFactory builds an uninitialized provider from a validated configuration.
type ProviderFactory interface {
	Build(ctx context.Context, cfg cryptoDomain.ProviderConfig) (KEKProvider, error)
}
