// Package repository stores file artifacts in a gocloud blob bucket.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // Register mem:// URLs
	_ "gocloud.dev/blob/s3blob"  // Register s3:// URLs
	"gocloud.dev/gcerrors"

	apperrors "github.com/allisson/hsmvault/internal/errors"
	filesDomain "github.com/allisson/hsmvault/internal/files/domain"
)

// BlobRepository keeps artifacts as flat keys in a bucket.
type BlobRepository struct {
	bucket *blob.Bucket
}

// NewBlobRepository wraps an already opened bucket. The repository takes ownership.
func NewBlobRepository(bucket *blob.Bucket) *BlobRepository {
	return &BlobRepository{bucket: bucket}
}

// OpenBlobRepository opens the bucket addressed by storageURL (file://, mem://, s3://).
// When storageURL is empty, dataDir is opened as a local directory and created if missing.
func OpenBlobRepository(ctx context.Context, storageURL, dataDir string) (*BlobRepository, error) {
	var (
		bucket *blob.Bucket
		err    error
	)
	if storageURL != "" {
		bucket, err = blob.OpenBucket(ctx, storageURL)
	} else {
		bucket, err = fileblob.OpenBucket(dataDir, &fileblob.Options{CreateDir: true})
	}
	if err != nil {
		return nil, apperrors.Join(filesDomain.ErrStorage, fmt.Errorf("failed to open bucket: %w", err))
	}
	return NewBlobRepository(bucket), nil
}

// Write stores data under name, replacing any previous content.
func (r *BlobRepository) Write(ctx context.Context, name string, data []byte) error {
	if err := filesDomain.ValidateName(name); err != nil {
		return err
	}
	if err := r.bucket.WriteAll(ctx, name, data, nil); err != nil {
		return mapBlobError(err, name)
	}
	return nil
}

// Read returns the content stored under name.
func (r *BlobRepository) Read(ctx context.Context, name string) ([]byte, error) {
	if err := filesDomain.ValidateName(name); err != nil {
		return nil, err
	}
	data, err := r.bucket.ReadAll(ctx, name)
	if err != nil {
		return nil, mapBlobError(err, name)
	}
	return data, nil
}

// Open returns a reader and the size of the artifact for streaming downloads.
func (r *BlobRepository) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	if err := filesDomain.ValidateName(name); err != nil {
		return nil, 0, err
	}
	reader, err := r.bucket.NewReader(ctx, name, nil)
	if err != nil {
		return nil, 0, mapBlobError(err, name)
	}
	return reader, reader.Size(), nil
}

// Delete removes the artifact stored under name.
func (r *BlobRepository) Delete(ctx context.Context, name string) error {
	if err := filesDomain.ValidateName(name); err != nil {
		return err
	}
	if err := r.bucket.Delete(ctx, name); err != nil {
		return mapBlobError(err, name)
	}
	return nil
}

// Exists reports whether an artifact is stored under name.
func (r *BlobRepository) Exists(ctx context.Context, name string) (bool, error) {
	if err := filesDomain.ValidateName(name); err != nil {
		return false, err
	}
	ok, err := r.bucket.Exists(ctx, name)
	if err != nil {
		return false, mapBlobError(err, name)
	}
	return ok, nil
}

// List returns the top-level artifacts sorted by name.
func (r *BlobRepository) List(ctx context.Context) ([]*filesDomain.FileInfo, error) {
	files := make([]*filesDomain.FileInfo, 0)

	iter := r.bucket.List(&blob.ListOptions{Delimiter: "/"})
	for {
		obj, err := iter.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Join(filesDomain.ErrStorage, fmt.Errorf("failed to list artifacts: %w", err))
		}
		if obj.IsDir {
			continue
		}
		files = append(files, &filesDomain.FileInfo{
			Name:       obj.Key,
			Size:       obj.Size,
			ModifiedAt: obj.ModTime.UTC(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Ping checks that the bucket is reachable.
func (r *BlobRepository) Ping(ctx context.Context) error {
	ok, err := r.bucket.IsAccessible(ctx)
	if err != nil {
		return apperrors.Join(filesDomain.ErrStorage, err)
	}
	if !ok {
		return apperrors.Wrap(filesDomain.ErrStorage, "bucket is not accessible")
	}
	return nil
}

// Close releases the bucket.
func (r *BlobRepository) Close() error {
	return r.bucket.Close()
}

func mapBlobError(err error, name string) error {
	if gcerrors.Code(err) == gcerrors.NotFound {
		return apperrors.Wrap(filesDomain.ErrFileNotFound, name)
	}
	return apperrors.Join(filesDomain.ErrStorage, fmt.Errorf("%s: %w", name, err))
}
