package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDTO "github.com/allisson/hsmvault/internal/crypto/http/dto"
	cryptoUseCase "github.com/allisson/hsmvault/internal/crypto/usecase"
)

// RunProviderStatus probes the active KEK provider and prints its state.
// An unhealthy provider is reported and returned as an error so scripts can
// act on the exit code.
func RunProviderStatus(
	ctx context.Context,
	registry cryptoUseCase.ProviderRegistry,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	status, err := registry.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read provider status: %w", err)
	}

	logger.Info("provider status",
		slog.String("type", string(status.Type)),
		slog.String("state", status.State.String()),
		slog.Bool("healthy", status.Healthy),
	)

	response := cryptoDTO.MapStatusToResponse(status)
	if format == "json" {
		if err := writeJSON(writer, response); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintf(writer,
			"Provider: %s\nState: %s\nActivated: %s\nHealthy: %t\n",
			response.HSMType,
			response.State,
			response.ActivatedAt.Format(time.RFC3339),
			response.Healthy,
		); err != nil {
			return err
		}
		if response.ProbeError != "" {
			if _, err := fmt.Fprintf(writer, "Probe error: %s\n", response.ProbeError); err != nil {
				return err
			}
		}
	}

	if !status.Healthy {
		return fmt.Errorf("provider %s is unhealthy: %s", status.Type, status.ProbeError)
	}
	return nil
}
