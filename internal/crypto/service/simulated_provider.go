package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// SimulatedProvider keeps a 32-byte KEK in a local file and wraps DEKs with
// AES-256-GCM using the envelope layout. It offers no hardware protection and
// is only built when the configuration explicitly selects it.
type SimulatedProvider struct {
	lifecycle
	keyPath string
	aead    *AESGCMCipher
	logger  *slog.Logger
}

// NewSimulatedProvider loads the KEK file or creates it on first use.
func NewSimulatedProvider(cfg cryptoDomain.SimulatedConfig, logger *slog.Logger) (*SimulatedProvider, error) {
	kek, created, err := LoadOrCreateKEKFile(cfg.KeyFilePath)
	if err != nil {
		return nil, err
	}
	defer cryptoDomain.Zero(kek)

	aead, err := NewAESGCM(kek)
	if err != nil {
		return nil, err
	}

	logger.Warn("simulated KEK provider in use, keys are not hardware protected",
		slog.String("key_file", cfg.KeyFilePath),
		slog.Bool("created", created),
	)

	return &SimulatedProvider{
		keyPath: cfg.KeyFilePath,
		aead:    aead,
		logger:  logger,
	}, nil
}

// Type returns ProviderSimulated.
func (p *SimulatedProvider) Type() cryptoDomain.ProviderType {
	return cryptoDomain.ProviderSimulated
}

// Wrap seals the key material under the local KEK.
func (p *SimulatedProvider) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := checkDEK(dek); err != nil {
		return nil, err
	}
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	return seal(p.aead, dek)
}

// Unwrap opens key material sealed by Wrap.
func (p *SimulatedProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := contextError(ctx); err != nil {
		return nil, err
	}
	dek, err := open(p.aead, wrapped)
	if err != nil {
		return nil, err
	}
	return checkUnwrapped(dek)
}

// Probe round-trips random key material through the KEK.
func (p *SimulatedProvider) Probe(ctx context.Context) error {
	if err := p.probeable(); err != nil {
		return err
	}

	sample := make([]byte, cryptoDomain.DEKSize)
	if _, err := rand.Read(sample); err != nil {
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
	defer cryptoDomain.Zero(sample)

	wrapped, err := seal(p.aead, sample)
	if err != nil {
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
	got, err := open(p.aead, wrapped)
	if err != nil {
		return err
	}
	cryptoDomain.Zero(got)

	return p.activate()
}

// Retire drops the cipher. The key file stays on disk for later reuse.
func (p *SimulatedProvider) Retire(ctx context.Context) error {
	if p.retire() {
		p.logger.Info("simulated KEK provider retired", slog.String("key_file", p.keyPath))
	}
	return nil
}

// LoadOrCreateKEKFile returns the KEK stored at path, generating and persisting
// a new random key with 0600 permissions when the file does not exist yet.
// Concurrent creators race on O_EXCL and the loser reads the winner's key.
func LoadOrCreateKEKFile(path string) (kek []byte, created bool, err error) {
	kek, err = readKEKFile(path)
	if err == nil {
		return kek, false, nil
	}
	if !apperrors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, false, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
		}
	}

	kek = make([]byte, cryptoDomain.KEKSize)
	if _, err := rand.Read(kek); err != nil {
		return nil, false, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		cryptoDomain.Zero(kek)
		if apperrors.Is(err, fs.ErrExist) {
			kek, err = readKEKFile(path)
			return kek, false, err
		}
		return nil, false, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	if _, err := f.Write(kek); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		cryptoDomain.Zero(kek)
		return nil, false, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		cryptoDomain.Zero(kek)
		return nil, false, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	return kek, true, nil
}

func readKEKFile(path string) ([]byte, error) {
	kek, err := os.ReadFile(path)
	if err != nil {
		if apperrors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
	if len(kek) != cryptoDomain.KEKSize {
		cryptoDomain.Zero(kek)
		return nil, apperrors.Wrap(
			cryptoDomain.ErrInvalidKeySize,
			fmt.Sprintf("KEK file %s holds %d bytes", path, len(kek)),
		)
	}
	return kek, nil
}
