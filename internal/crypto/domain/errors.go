package domain

import (
	"github.com/allisson/hsmvault/internal/errors"
)

// Cryptographic operation error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so
// callers can branch on the failure kind with errors.Is. Providers attach the
// backend cause with errors.Join; the cause never replaces the domain error.
var (
	// ErrInvalidKeySize indicates key material is not exactly 32 bytes.
	//
	// Returned before wrapping a DEK, before encrypting with a DEK, and when a
	// simulated KEK file holds the wrong number of bytes.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInvalidCiphertext indicates an envelope or wrapped key is malformed.
	//
	// Envelopes shorter than 28 bytes are rejected with this error before any
	// cryptographic operation runs.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrInvalidCiphertext = errors.Wrap(errors.ErrInvalidInput, "invalid ciphertext")

	// ErrIntegrityFailure indicates authenticated decryption or unwrapping failed.
	//
	// This covers a wrong key, a modified tag, corrupted ciphertext and key
	// material wrapped by a different provider instance. The specific cause is
	// not disclosed to clients.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrIntegrityFailure = errors.Wrap(errors.ErrIntegrity, "integrity failure")

	// ErrKeyNotFound indicates the KEK label or key id is absent in the backend.
	//
	// HTTP Status: 404 Not Found
	ErrKeyNotFound = errors.Wrap(errors.ErrNotFound, "key not found")

	// ErrAuthFailure indicates the backend rejected credentials (PIN, cloud
	// credentials or client certificate).
	//
	// HTTP Status: 401 Unauthorized
	ErrAuthFailure = errors.Wrap(errors.ErrUnauthorized, "authentication failure")

	// ErrBackendUnavailable indicates the backend library could not be loaded,
	// the slot or endpoint could not be reached, or the key is not usable.
	//
	// HTTP Status: 503 Service Unavailable
	ErrBackendUnavailable = errors.Wrap(errors.ErrUnavailable, "backend unavailable")

	// ErrBackendTimeout indicates a backend call exceeded its configured timeout.
	//
	// HTTP Status: 504 Gateway Timeout
	ErrBackendTimeout = errors.Wrap(errors.ErrTimeout, "backend timeout")

	// ErrProviderRetired indicates the provider instance was superseded or shut down.
	//
	// HTTP Status: 503 Service Unavailable
	ErrProviderRetired = errors.Wrap(errors.ErrUnavailable, "provider retired")

	// ErrProviderNotActive indicates the provider has not passed its probe yet.
	//
	// HTTP Status: 503 Service Unavailable
	ErrProviderNotActive = errors.Wrap(errors.ErrUnavailable, "provider not active")

	// ErrInvalidProviderConfig indicates a ProviderConfig failed validation.
	//
	// HTTP Status: 422 Unprocessable Entity
	ErrInvalidProviderConfig = errors.Wrap(errors.ErrInvalidInput, "invalid provider config")
)
