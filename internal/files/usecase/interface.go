// Package usecase implements file protection: storing uploads and turning them
// into an encrypted envelope plus a wrapped DEK, and back.
package usecase

import (
	"context"
	"io"

	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
)

// FileRepository defines artifact persistence operations.
type FileRepository interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]*filesDomain.FileInfo, error)
}

// FileUseCase defines the file protection business logic.
type FileUseCase interface {
	// Upload stores data under name, replacing an existing artifact.
	Upload(ctx context.Context, name string, data []byte) (*filesDomain.FileInfo, error)

	// List returns every stored artifact sorted by name.
	List(ctx context.Context) ([]*filesDomain.FileInfo, error)

	// Download opens an artifact for streaming. The caller closes the reader.
	Download(ctx context.Context, name string) (io.ReadCloser, int64, error)

	// Encrypt writes name.encrypted and name.dek for the stored artifact name.
	// On failure the store keeps the pair it had before the call, or no pair.
	Encrypt(ctx context.Context, name string) (*filesDomain.EncryptResult, error)

	// Decrypt restores the plaintext of an envelope using its wrapped DEK.
	Decrypt(ctx context.Context, encryptedName, dekName string) (*filesDomain.DecryptResult, error)
}
