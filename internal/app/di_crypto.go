package app

import (
	"context"
	"fmt"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/hsmvault/internal/crypto/http"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
	"github.com/allisson/hsmvault/internal/hsmproxy"
	"github.com/allisson/hsmvault/internal/metrics"
	"github.com/allisson/hsmvault/internal/tlsutil"
)

// KMSService returns the KMS service used by portable keeper providers.
func (c *Container) KMSService() cryptoService.KMSService {
	c.kmsServiceInit.Do(func() {
		c.kmsService = cryptoService.NewKMSService()
	})
	return c.kmsService
}

// PKCS11ModulePool returns the pool sharing loaded PKCS#11 libraries across providers.
func (c *Container) PKCS11ModulePool() *cryptoService.PKCS11ModulePool {
	c.modulePoolInit.Do(func() {
		c.modulePool = cryptoService.NewPKCS11ModulePool(nil)
	})
	return c.modulePool
}

// ProviderFactory returns the factory building KEK providers from configuration.
func (c *Container) ProviderFactory() cryptoService.ProviderFactory {
	c.providerFactoryInit.Do(func() {
		c.providerFactory = cryptoService.NewProviderFactory(c.KMSService(), c.PKCS11ModulePool(), c.Logger())
	})
	return c.providerFactory
}

// ProviderRegistry returns the registry holding the active KEK provider.
// The registry starts empty; see ActivateProvider.
func (c *Container) ProviderRegistry() (cryptoUseCase.ProviderRegistry, error) {
	var err error
	c.providerRegistryInit.Do(func() {
		c.providerRegistry, err = c.initProviderRegistry()
		if err != nil {
			c.initErrors["providerRegistry"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["providerRegistry"]; exists {
		return nil, storedErr
	}
	return c.providerRegistry, nil
}

// DekManager returns the DEK manager instrumented with business metrics.
func (c *Container) DekManager() (cryptoUseCase.DekManager, error) {
	var err error
	c.dekManagerInit.Do(func() {
		c.dekManager, err = c.initDekManager()
		if err != nil {
			c.initErrors["dekManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["dekManager"]; exists {
		return nil, storedErr
	}
	return c.dekManager, nil
}

// EnvelopeCipher returns the AES-256-GCM envelope cipher.
func (c *Container) EnvelopeCipher() cryptoService.EnvelopeCipher {
	c.envelopeCipherInit.Do(func() {
		c.envelopeCipher = cryptoService.NewEnvelopeCipher()
	})
	return c.envelopeCipher
}

// ProviderHandler returns the HTTP handler for provider status and switching.
func (c *Container) ProviderHandler() (*cryptoHTTP.ProviderHandler, error) {
	var err error
	c.providerHandlerInit.Do(func() {
		c.providerHandler, err = c.initProviderHandler()
		if err != nil {
			c.initErrors["providerHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["providerHandler"]; exists {
		return nil, storedErr
	}
	return c.providerHandler, nil
}

// ActivateProvider switches the registry to the provider named by name, a
// provider type, legacy alias or PKCS#11 profile. An empty name uses PROVIDER_TYPE.
func (c *Container) ActivateProvider(ctx context.Context, name string) (*cryptoDomain.ProviderStatus, error) {
	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, err
	}

	cfg, err := c.config.ProviderDefaults().Config(name)
	if err != nil {
		return nil, err
	}

	return registry.Switch(ctx, cfg)
}

// initProviderRegistry creates the registry and exports its state as a gauge.
func (c *Container) initProviderRegistry() (cryptoUseCase.ProviderRegistry, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for provider registry: %w", err)
	}

	registry := cryptoUseCase.NewProviderRegistry(c.ProviderFactory(), c.Logger())

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for provider registry: %w", err)
	}
	if metricsProvider != nil {
		if err := metrics.RegisterProviderGauge(
			metricsProvider.MeterProvider(),
			c.config.MetricsNamespace,
			registry.Active,
		); err != nil {
			return nil, err
		}
	}

	return cryptoUseCase.NewProviderRegistryWithMetrics(registry, businessMetrics), nil
}

// initDekManager creates the DEK manager over the provider registry.
func (c *Container) initDekManager() (cryptoUseCase.DekManager, error) {
	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider registry for dek manager: %w", err)
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for dek manager: %w", err)
	}

	return cryptoUseCase.NewDekManagerWithMetrics(cryptoUseCase.NewDekManager(registry), businessMetrics), nil
}

// initProviderHandler creates the provider handler.
func (c *Container) initProviderHandler() (*cryptoHTTP.ProviderHandler, error) {
	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider registry for provider handler: %w", err)
	}

	return cryptoHTTP.NewProviderHandler(registry, c.config.ProviderDefaults(), c.Logger()), nil
}

// initHSMProxyServer creates the mTLS proxy over the provider registry.
func (c *Container) initHSMProxyServer() (*hsmproxy.Server, error) {
	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider registry for hsm proxy: %w", err)
	}

	tlsConfig, err := tlsutil.LoadServerTLSConfig(
		c.config.HSMProxyCertFile,
		c.config.HSMProxyKeyFile,
		c.config.HSMProxyClientCAFile,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load hsm proxy tls configuration: %w", err)
	}

	logger := c.Logger()
	return hsmproxy.NewServer(
		c.config.HSMProxyHost,
		c.config.HSMProxyPort,
		tlsConfig,
		hsmproxy.NewHandler(registry, logger),
		logger,
	), nil
}
