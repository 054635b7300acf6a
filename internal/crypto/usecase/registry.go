package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	cryptoService "github.com/allisson/hsmvault/internal/crypto/service"
)

// activeProvider is one generation of the registry. inflight counts leases.
type activeProvider struct {
	provider    cryptoService.KEKProvider
	cfg         cryptoDomain.ProviderConfig
	activatedAt time.Time
	inflight    sync.WaitGroup
}

// providerRegistry implements ProviderRegistry.
type providerRegistry struct {
	factory cryptoService.ProviderFactory
	logger  *slog.Logger

	switchMu sync.Mutex
	mu       sync.RWMutex
	current  *activeProvider

	retiring sync.WaitGroup
}

// NewProviderRegistry creates an empty registry. Call Switch to activate the
// first provider.
func NewProviderRegistry(factory cryptoService.ProviderFactory, logger *slog.Logger) ProviderRegistry {
	return &providerRegistry{
		factory: factory,
		logger:  logger,
	}
}

// Switch replaces the active provider. Switches are serialized.
func (r *providerRegistry) Switch(
	ctx context.Context,
	cfg cryptoDomain.ProviderConfig,
) (*cryptoDomain.ProviderStatus, error) {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	candidate, err := r.factory.Build(ctx, cfg)
	if err != nil {
		r.logger.Warn("failed to build KEK provider",
			slog.String("type", string(cfg.Type)),
			slog.Any("error", err),
		)
		return nil, err
	}

	if err := candidate.Probe(ctx); err != nil {
		r.logger.Warn("KEK provider probe failed, keeping previous provider",
			slog.String("type", string(cfg.Type)),
			slog.Any("error", err),
		)
		r.retireNow(ctx, candidate, cfg)
		return nil, err
	}

	next := &activeProvider{
		provider:    candidate,
		cfg:         cfg,
		activatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	prev := r.current
	r.current = next
	r.mu.Unlock()

	r.logger.Info("KEK provider activated", slog.String("type", string(cfg.Type)))

	if prev != nil {
		r.retireAfterDrain(ctx, prev)
	}

	return statusOf(next, nil), nil
}

// Wrap leases the active provider and wraps outside the lock.
func (r *providerRegistry) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	ap, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer ap.inflight.Done()

	return ap.provider.Wrap(ctx, dek)
}

// Unwrap leases the active provider and unwraps outside the lock.
func (r *providerRegistry) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	ap, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer ap.inflight.Done()

	return ap.provider.Unwrap(ctx, wrapped)
}

// Status probes the active provider under a lease.
func (r *providerRegistry) Status(ctx context.Context) (*cryptoDomain.ProviderStatus, error) {
	ap, err := r.acquire()
	if err != nil {
		return nil, err
	}
	defer ap.inflight.Done()

	return statusOf(ap, ap.provider.Probe(ctx)), nil
}

// Active reports whether a provider is serving.
func (r *providerRegistry) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current != nil && r.current.provider.State() == cryptoDomain.StateActive
}

// Close retires the active provider after its leases drain, then waits for
// retirements started by earlier switches. Both waits are bounded by ctx.
func (r *providerRegistry) Close(ctx context.Context) error {
	r.switchMu.Lock()
	defer r.switchMu.Unlock()

	r.mu.Lock()
	prev := r.current
	r.current = nil
	r.mu.Unlock()

	if prev != nil {
		r.retireAfterDrain(ctx, prev)
	}

	done := make(chan struct{})
	go func() {
		r.retiring.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("KEK provider retirement did not finish"), ctx.Err())
	}
}

// acquire takes a lease on the active provider.
func (r *providerRegistry) acquire() (*activeProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.current == nil {
		return nil, cryptoDomain.ErrProviderNotActive
	}
	r.current.inflight.Add(1)
	return r.current, nil
}

// retireAfterDrain retires prev once its leases are released. When ctx ends
// first the retirement keeps going in the background.
func (r *providerRegistry) retireAfterDrain(ctx context.Context, prev *activeProvider) {
	done := make(chan struct{})
	r.retiring.Add(1)
	go func() {
		defer r.retiring.Done()
		defer close(done)
		prev.inflight.Wait()
		r.retireNow(ctx, prev.provider, prev.cfg)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("KEK provider still draining, retiring in background",
			slog.String("type", string(prev.cfg.Type)),
		)
	}
}

// retireNow retires p with its own deadline so a finished caller context does
// not skip teardown.
func (r *providerRegistry) retireNow(ctx context.Context, p cryptoService.KEKProvider, cfg cryptoDomain.ProviderConfig) {
	retireCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.EffectiveTimeout())
	defer cancel()

	if err := p.Retire(retireCtx); err != nil {
		r.logger.Error("failed to retire KEK provider",
			slog.String("type", string(cfg.Type)),
			slog.Any("error", err),
		)
		return
	}
	r.logger.Info("KEK provider retired", slog.String("type", string(cfg.Type)))
}

func statusOf(ap *activeProvider, probeErr error) *cryptoDomain.ProviderStatus {
	status := &cryptoDomain.ProviderStatus{
		Type:        ap.provider.Type(),
		State:       ap.provider.State(),
		ActivatedAt: ap.activatedAt,
		Config:      ap.cfg.Redacted(),
		Healthy:     probeErr == nil,
	}
	if probeErr != nil {
		status.ProbeError = probeErr.Error()
	}
	return status
}
