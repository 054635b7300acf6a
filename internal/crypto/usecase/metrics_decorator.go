package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	"github.com/allisson/hsmvault/internal/metrics"
)

// dekManagerWithMetrics decorates DekManager with metrics instrumentation.
type dekManagerWithMetrics struct {
	next    DekManager
	metrics metrics.BusinessMetrics
}

// NewDekManagerWithMetrics wraps a DekManager with metrics recording.
func NewDekManagerWithMetrics(manager DekManager, m metrics.BusinessMetrics) DekManager {
	return &dekManagerWithMetrics{
		next:    manager,
		metrics: m,
	}
}

// Generate records metrics for DEK generation.
func (d *dekManagerWithMetrics) Generate(ctx context.Context) ([]byte, error) {
	start := time.Now()
	dek, err := d.next.Generate(ctx)
	record(ctx, d.metrics, "dek_generate", start, err)
	return dek, err
}

// Protect records metrics for DEK wrapping.
func (d *dekManagerWithMetrics) Protect(ctx context.Context, dek []byte) ([]byte, error) {
	start := time.Now()
	wrapped, err := d.next.Protect(ctx, dek)
	record(ctx, d.metrics, "dek_protect", start, err)
	return wrapped, err
}

// Recover records metrics for DEK unwrapping.
func (d *dekManagerWithMetrics) Recover(ctx context.Context, wrapped []byte) ([]byte, error) {
	start := time.Now()
	dek, err := d.next.Recover(ctx, wrapped)
	record(ctx, d.metrics, "dek_recover", start, err)
	return dek, err
}

// providerRegistryWithMetrics records provider switches and status probes.
// Wrap and Unwrap are measured by the DekManager decorator.
type providerRegistryWithMetrics struct {
	ProviderRegistry
	metrics metrics.BusinessMetrics
}

// NewProviderRegistryWithMetrics wraps a ProviderRegistry with metrics recording.
func NewProviderRegistryWithMetrics(registry ProviderRegistry, m metrics.BusinessMetrics) ProviderRegistry {
	return &providerRegistryWithMetrics{
		ProviderRegistry: registry,
		metrics:          m,
	}
}

// Switch records metrics for provider switches.
func (r *providerRegistryWithMetrics) Switch(
	ctx context.Context,
	cfg cryptoDomain.ProviderConfig,
) (*cryptoDomain.ProviderStatus, error) {
	start := time.Now()
	status, err := r.ProviderRegistry.Switch(ctx, cfg)
	record(ctx, r.metrics, "provider_switch", start, err)
	return status, err
}

// Status records metrics for provider health probes.
func (r *providerRegistryWithMetrics) Status(ctx context.Context) (*cryptoDomain.ProviderStatus, error) {
	start := time.Now()
	status, err := r.ProviderRegistry.Status(ctx)
	recordStatus(ctx, r.metrics, "provider_probe", start, err == nil && status.Healthy)
	return status, err
}

func record(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, err error) {
	recordStatus(ctx, m, operation, start, err == nil)
}

func recordStatus(ctx context.Context, m metrics.BusinessMetrics, operation string, start time.Time, ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}

	m.RecordOperation(ctx, "crypto", operation, status)
	m.RecordDuration(ctx, "crypto", operation, time.Since(start), status)
}
