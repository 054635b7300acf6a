// Package domain defines the artifacts handled by file protection: plaintext
// uploads, encrypted envelopes and their wrapped DEK sidecars.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/allisson/hsmvault/internal/errors"
)

const (
	// EncryptedSuffix is appended to the envelope written by Encrypt.
	EncryptedSuffix = ".encrypted"

	// DEKSuffix is appended to the wrapped DEK written next to the envelope.
	DEKSuffix = ".dek"

	// RestoredSuffix is appended on decrypt when the envelope name lacks EncryptedSuffix.
	RestoredSuffix = ".restored"

	// MaxFileNameLength bounds artifact names including suffixes.
	MaxFileNameLength = 255

	// reservedSuffix is used by the local bucket driver for attribute sidecars.
	reservedSuffix = ".attrs"
)

// FileInfo describes a stored artifact.
type FileInfo struct {
	Name       string
	Size       int64
	ModifiedAt time.Time
}

// EncryptResult describes the artifact pair written by Encrypt.
type EncryptResult struct {
	OriginalFilename  string
	OriginalSize      int64
	EncryptedFilename string
	EncryptedSize     int64
	DEKFilename       string
	// EncryptedDEK is the wrapped DEK, base64 encoded.
	EncryptedDEK string
}

// DecryptResult describes the restored plaintext artifact.
type DecryptResult struct {
	OriginalFilename string
	Size             int64
}

// ValidateName rejects names that are empty, hidden, too long or able to
// traverse outside the store.
func ValidateName(name string) error {
	reason := ""
	switch {
	case name == "":
		reason = "name is required"
	case len(name) > MaxFileNameLength:
		reason = fmt.Sprintf("name exceeds %d bytes", MaxFileNameLength)
	case strings.ContainsAny(name, "/\\\x00"):
		reason = "name must not contain path separators or NUL"
	case strings.Contains(name, ".."):
		reason = "name must not contain '..'"
	case strings.HasPrefix(name, "."):
		reason = "name must not start with '.'"
	case strings.HasSuffix(name, reservedSuffix):
		reason = fmt.Sprintf("name must not end with %q", reservedSuffix)
	default:
		return nil
	}
	return errors.Wrap(ErrInvalidFileName, fmt.Sprintf("%q: %s", name, reason))
}

// EncryptedName returns the envelope name for a plaintext artifact.
func EncryptedName(name string) string {
	return name + EncryptedSuffix
}

// DEKName returns the wrapped DEK name for a plaintext artifact.
func DEKName(name string) string {
	return name + DEKSuffix
}

// RestoredName derives the plaintext name from an envelope name.
func RestoredName(encryptedName string) string {
	if base, ok := strings.CutSuffix(encryptedName, EncryptedSuffix); ok && base != "" {
		return base
	}
	return encryptedName + RestoredSuffix
}
