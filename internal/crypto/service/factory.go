package service

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// providerFactory builds KEK providers from configuration.
type providerFactory struct {
	kmsService KMSService
	modulePool *PKCS11ModulePool
	logger     *slog.Logger
}

// NewProviderFactory creates a factory sharing one PKCS#11 module pool across
// every provider it builds.
func NewProviderFactory(kmsService KMSService, modulePool *PKCS11ModulePool, logger *slog.Logger) ProviderFactory {
	if modulePool == nil {
		modulePool = NewPKCS11ModulePool(nil)
	}
	return &providerFactory{
		kmsService: kmsService,
		modulePool: modulePool,
		logger:     logger,
	}
}

// Build validates cfg and constructs the matching variant. The returned
// provider is Uninitialized until probed.
func (f *providerFactory) Build(ctx context.Context, cfg cryptoDomain.ProviderConfig) (KEKProvider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.EffectiveTimeout()
	logger := f.logger.With(slog.String("provider", string(cfg.Type)))

	switch cfg.Type {
	case cryptoDomain.ProviderSimulated:
		return built(NewSimulatedProvider(*cfg.Simulated, logger))
	case cryptoDomain.ProviderPKCS11:
		return built(NewPKCS11Provider(ctx, *cfg.PKCS11, timeout, f.modulePool, logger))
	case cryptoDomain.ProviderCloudKMS:
		if cfg.CloudKMS.KeyURI != "" {
			return built(NewKeeperProvider(ctx, f.kmsService, cfg.CloudKMS.KeyURI, timeout, logger))
		}
		return built(NewCloudKMSProvider(ctx, *cfg.CloudKMS, timeout, logger))
	case cryptoDomain.ProviderRemoteMTLS:
		return built(NewRemoteMTLSProvider(*cfg.RemoteMTLS, timeout, logger))
	default:
		return nil, apperrors.Wrap(
			cryptoDomain.ErrInvalidProviderConfig,
			fmt.Sprintf("unsupported provider type %q", cfg.Type),
		)
	}
}

// built keeps a typed nil pointer from escaping as a non-nil interface.
func built[P KEKProvider](p P, err error) (KEKProvider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
