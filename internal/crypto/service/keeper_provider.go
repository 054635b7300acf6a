package service

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/url"
	"time"

	"gocloud.dev/gcerrors"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// KeeperProvider wraps DEKs through a gocloud.dev secrets keeper addressed by URL.
// It serves the cloud KMS variant when a key URI is configured.
type KeeperProvider struct {
	lifecycle
	keeper  cryptoDomain.KMSKeeper
	scheme  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewKeeperProvider opens the keeper for keyURI.
func NewKeeperProvider(
	ctx context.Context,
	kmsService KMSService,
	keyURI string,
	timeout time.Duration,
	logger *slog.Logger,
) (*KeeperProvider, error) {
	keeper, err := kmsService.OpenKeeper(ctx, keyURI)
	if err != nil {
		return nil, err
	}

	scheme := "unknown"
	if u, err := url.Parse(keyURI); err == nil {
		scheme = u.Scheme
	}

	return &KeeperProvider{
		keeper:  keeper,
		scheme:  scheme,
		timeout: timeout,
		logger:  logger,
	}, nil
}

// Type returns ProviderCloudKMS.
func (p *KeeperProvider) Type() cryptoDomain.ProviderType {
	return cryptoDomain.ProviderCloudKMS
}

// Wrap encrypts the key material with the keeper.
func (p *KeeperProvider) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := checkDEK(dek); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	wrapped, err := p.keeper.Encrypt(ctx, dek)
	if err != nil {
		return nil, mapKeeperError(err, false)
	}
	return wrapped, nil
}

// Unwrap decrypts key material with the keeper.
func (p *KeeperProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(wrapped) == 0 {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidCiphertext, "empty wrapped key")
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	dek, err := p.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return nil, mapKeeperError(err, true)
	}
	return checkUnwrapped(dek)
}

// Probe round-trips random key material through the keeper.
func (p *KeeperProvider) Probe(ctx context.Context) error {
	if err := p.probeable(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	sample := make([]byte, cryptoDomain.DEKSize)
	if _, err := rand.Read(sample); err != nil {
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
	defer cryptoDomain.Zero(sample)

	wrapped, err := p.keeper.Encrypt(ctx, sample)
	if err != nil {
		return mapKeeperError(err, false)
	}
	got, err := p.keeper.Decrypt(ctx, wrapped)
	if err != nil {
		return mapKeeperError(err, true)
	}
	cryptoDomain.Zero(got)

	return p.activate()
}

// Retire closes the keeper.
func (p *KeeperProvider) Retire(ctx context.Context) error {
	if !p.retire() {
		return nil
	}
	p.logger.Info("KMS keeper provider retired", slog.String("scheme", p.scheme))
	if err := p.keeper.Close(); err != nil {
		return apperrors.Wrap(err, "failed to close KMS keeper")
	}
	return nil
}

// mapKeeperError translates gocloud error codes. Drivers such as localsecrets
// report a failed authentication check as Unknown, so on unwrap the
// non-transport codes are treated as integrity failures.
func mapKeeperError(err error, unwrapping bool) error {
	if apperrors.Is(err, context.DeadlineExceeded) {
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	}

	switch gcerrors.Code(err) {
	case gcerrors.DeadlineExceeded:
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	case gcerrors.NotFound:
		return apperrors.Join(cryptoDomain.ErrKeyNotFound, err)
	case gcerrors.PermissionDenied:
		return apperrors.Join(cryptoDomain.ErrAuthFailure, err)
	case gcerrors.Unknown, gcerrors.InvalidArgument, gcerrors.FailedPrecondition:
		if unwrapping {
			return apperrors.Join(cryptoDomain.ErrIntegrityFailure, err)
		}
	}
	return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
}
