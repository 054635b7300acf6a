package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/hsmvault/internal/app"
	"github.com/allisson/hsmvault/internal/config"
)

// RunHSMProxy serves the remote KEK protocol over mutual TLS in front of a
// locally attached provider. The proxy refuses to start without a healthy
// provider. An empty providerName uses HSM_PROXY_PROVIDER_TYPE.
func RunHSMProxy(ctx context.Context, version, providerName string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting hsm proxy", slog.String("version", version))

	defer closeContainer(container, logger)

	if providerName == "" {
		providerName = cfg.HSMProxyProviderType
	}

	status, err := container.ActivateProvider(ctx, providerName)
	if err != nil {
		return fmt.Errorf("failed to activate KEK provider %q: %w", providerName, err)
	}
	logger.Info("KEK provider ready", slog.String("type", string(status.Type)))

	server, err := container.HSMProxyServer()
	if err != nil {
		return fmt.Errorf("failed to initialize hsm proxy: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErr <- err
		}
	}()

	var shutdownErrors []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("hsm proxy error, initiating shutdown", slog.Any("error", err))
		shutdownErrors = append(shutdownErrors, fmt.Errorf("hsm proxy error: %w", err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		shutdownErrors = append(shutdownErrors, fmt.Errorf("hsm proxy shutdown: %w", err))
	}

	return errors.Join(shutdownErrors...)
}
