package domain

import (
	"github.com/allisson/hsmvault/internal/errors"
)

// File-specific error definitions.
var (
	// ErrInvalidFileName indicates a name that could escape the artifact store.
	ErrInvalidFileName = errors.Wrap(errors.ErrInvalidInput, "invalid file name")

	// ErrFileNotFound indicates the named artifact does not exist.
	ErrFileNotFound = errors.Wrap(errors.ErrNotFound, "file not found")

	// ErrStorage indicates the artifact store failed to read, write or list.
	ErrStorage = errors.Wrap(errors.ErrIO, "storage failure")
)
