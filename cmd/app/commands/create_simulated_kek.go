package commands

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
)

// RunCreateSimulatedKek writes a new 32-byte KEK file for the simulated
// provider. An existing file is kept unless force is set. Replacing the KEK
// makes every DEK wrapped under the old one unrecoverable.
// Key material is never printed.
func RunCreateSimulatedKek(writer io.Writer, path string, force bool, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("a KEK file path is required")
	}

	replaced := false
	if _, err := os.Stat(path); err == nil {
		if !force {
			return fmt.Errorf("KEK file %s already exists, use --force to replace it", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing KEK file: %w", err)
		}
		replaced = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to inspect KEK file: %w", err)
	}

	kek, created, err := cryptoService.LoadOrCreateKEKFile(path)
	if err != nil {
		return fmt.Errorf("failed to create KEK file: %w", err)
	}
	cryptoDomain.Zero(kek)

	if format == "json" {
		return writeJSON(writer, map[string]any{
			"path":     path,
			"created":  created,
			"replaced": replaced,
		})
	}

	if !created {
		_, err = fmt.Fprintf(writer, "KEK file %s was created concurrently and left untouched\n", path)
		return err
	}
	if _, err := fmt.Fprintf(writer, "Created simulated KEK file %s\n", path); err != nil {
		return err
	}
	if replaced {
		_, err = fmt.Fprintln(writer,
			"WARNING: the previous KEK was replaced, DEKs wrapped under it can no longer be recovered")
	}
	return err
}
