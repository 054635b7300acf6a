// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/hsmvault/internal/config"
	cryptoHTTP "github.com/allisson/hsmvault/internal/crypto/http"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
	filesHTTP "github.com/allisson/hsmvault/internal/files/http"
	filesRepository "github.com/allisson/hsmvault/internal/files/repository"
	filesUseCase "github.com/allisson/hsmvault/internal/files/usecase"
	"github.com/allisson/hsmvault/internal/hsmproxy"
	"github.com/allisson/hsmvault/internal/http"
	"github.com/allisson/hsmvault/internal/metrics"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Background work owned by the container, canceled on Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	// Crypto
	kmsService       cryptoService.KMSService
	modulePool       *cryptoService.PKCS11ModulePool
	providerFactory  cryptoService.ProviderFactory
	providerRegistry cryptoUseCase.ProviderRegistry
	dekManager       cryptoUseCase.DekManager
	envelopeCipher   cryptoService.EnvelopeCipher

	// Files
	fileRepository *filesRepository.BlobRepository
	fileUseCase    filesUseCase.FileUseCase

	// Handlers
	fileHandler     *filesHTTP.FileHandler
	providerHandler *cryptoHTTP.ProviderHandler

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer
	proxyServer   *hsmproxy.Server

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	kmsServiceInit       sync.Once
	modulePoolInit       sync.Once
	providerFactoryInit  sync.Once
	providerRegistryInit sync.Once
	dekManagerInit       sync.Once
	envelopeCipherInit   sync.Once
	fileRepositoryInit   sync.Once
	fileUseCaseInit      sync.Once
	fileHandlerInit      sync.Once
	providerHandlerInit  sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	proxyServerInit      sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// MetricsProvider returns the Prometheus-backed meter provider, or nil when
// metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = c.initMetricsProvider()
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder. It is a no-op when
// metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the API server with its router configured.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server. It returns nil when
// metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// HSMProxyServer returns the mTLS proxy server.
func (c *Container) HSMProxyServer() (*hsmproxy.Server, error) {
	var err error
	c.proxyServerInit.Do(func() {
		c.proxyServer, err = c.initHSMProxyServer()
		if err != nil {
			c.initErrors["proxyServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["proxyServer"]; exists {
		return nil, storedErr
	}
	return c.proxyServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// Servers stop first so no request holds a provider lease when the registry closes.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	if c.proxyServer != nil {
		if err := c.proxyServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("hsm proxy shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.providerRegistry != nil {
		if err := c.providerRegistry.Close(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("provider registry close: %w", err))
		}
	}

	if c.fileRepository != nil {
		if err := c.fileRepository.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("file repository close: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	c.cancel()

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(shutdownErrors...))
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initMetricsProvider creates the meter provider when metrics are enabled.
func (c *Container) initMetricsProvider() (*metrics.Provider, error) {
	if !c.config.MetricsEnabled {
		return nil, nil
	}

	provider, err := metrics.NewProvider(c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics provider: %w", err)
	}
	return provider, nil
}

// initBusinessMetrics creates business metrics on top of the meter provider.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}

	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	registry, err := c.ProviderRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider registry for http server: %w", err)
	}

	repo, err := c.FileRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get file repository for http server: %w", err)
	}

	fileHandler, err := c.FileHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get file handler for http server: %w", err)
	}

	providerHandler, err := c.ProviderHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get provider handler for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	server := http.NewServer(
		registry,
		repo,
		c.config.ServerHost,
		c.config.ServerPort,
		logger,
	)
	server.SetupRouter(
		c.ctx,
		c.config,
		fileHandler,
		providerHandler,
		metricsProvider,
		c.config.MetricsNamespace,
	)

	return server, nil
}

// initMetricsServer creates the metrics server when metrics are enabled.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}
	if provider == nil {
		return nil, nil
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}
