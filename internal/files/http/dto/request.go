// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"

	customValidation "github.com/allisson/hsmvault/internal/validation"
)

// DecryptFileRequest names the artifact pair to decrypt.
type DecryptFileRequest struct {
	EncryptedFilename string `json:"encryptedFilename"`
	DEKFilename       string `json:"dekFilename"`
}

// Validate checks that both names are plain artifact names.
func (r *DecryptFileRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EncryptedFilename, validation.Required, customValidation.SafeName),
		validation.Field(&r.DEKFilename, validation.Required, customValidation.SafeName),
	)
}
