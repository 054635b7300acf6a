package domain

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/hsmvault/internal/validation"
)

// Wire format shared by the remote mTLS provider and the HSM proxy.
// Payloads are standard base64. A response carrying Error is always a failure.

// RemoteEncryptRequest is the body of POST /encrypt.
type RemoteEncryptRequest struct {
	Plaintext string `json:"plaintext"`
}

// Validate checks the plaintext is present and base64.
func (r *RemoteEncryptRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Plaintext, validation.Required, customValidation.Base64),
	)
	return customValidation.WrapValidationError(err)
}

// RemoteEncryptResponse is the body returned by POST /encrypt.
type RemoteEncryptResponse struct {
	Ciphertext string `json:"ciphertext,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// RemoteDecryptRequest is the body of POST /decrypt.
type RemoteDecryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

// Validate checks the ciphertext is present and base64.
func (r *RemoteDecryptRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Ciphertext, validation.Required, customValidation.Base64),
	)
	return customValidation.WrapValidationError(err)
}

// RemoteDecryptResponse is the body returned by POST /decrypt.
type RemoteDecryptResponse struct {
	Plaintext string `json:"plaintext,omitempty"`
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// Machine-readable failure codes carried in the Code field.
const (
	RemoteCodeInvalidInput       = "invalid_input"
	RemoteCodeInvalidCiphertext  = "invalid_ciphertext"
	RemoteCodeIntegrityFailure   = "integrity_failure"
	RemoteCodeNotFound           = "not_found"
	RemoteCodeAuthFailure        = "auth_failure"
	RemoteCodeBackendUnavailable = "backend_unavailable"
	RemoteCodeTimeout            = "timeout"
)
