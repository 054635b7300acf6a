package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// lifecycle tracks Uninitialized -> Active -> Retired for a provider instance.
type lifecycle struct {
	state atomic.Int32
}

// State returns the current lifecycle state.
func (l *lifecycle) State() cryptoDomain.ProviderState {
	return cryptoDomain.ProviderState(l.state.Load())
}

// activate moves an uninitialized instance to Active. Retired is terminal.
func (l *lifecycle) activate() error {
	if l.state.CompareAndSwap(int32(cryptoDomain.StateUninitialized), int32(cryptoDomain.StateActive)) {
		return nil
	}
	if l.State() == cryptoDomain.StateRetired {
		return cryptoDomain.ErrProviderRetired
	}
	return nil
}

// retire marks the instance retired and reports whether this call did it.
func (l *lifecycle) retire() bool {
	return cryptoDomain.ProviderState(l.state.Swap(int32(cryptoDomain.StateRetired))) != cryptoDomain.StateRetired
}

// ready fails unless the instance is Active.
func (l *lifecycle) ready() error {
	switch l.State() {
	case cryptoDomain.StateActive:
		return nil
	case cryptoDomain.StateRetired:
		return cryptoDomain.ErrProviderRetired
	default:
		return cryptoDomain.ErrProviderNotActive
	}
}

// probeable fails only for retired instances.
func (l *lifecycle) probeable() error {
	if l.State() == cryptoDomain.StateRetired {
		return cryptoDomain.ErrProviderRetired
	}
	return nil
}

// withTimeout bounds a backend call by the provider timeout.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = cryptoDomain.DefaultProviderTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// contextError converts a finished context into a provider failure.
func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case apperrors.Is(err, context.DeadlineExceeded):
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	default:
		return fmt.Errorf("backend call canceled: %w", err)
	}
}

type blockingResult[T any] struct {
	value T
	err   error
}

// callBlocking runs fn on its own goroutine and waits until it returns or ctx ends.
// When the caller gives up first, abandon receives fn's result once it arrives so
// backend-side objects and copied key material can still be released.
func callBlocking[T any](ctx context.Context, fn func() (T, error), abandon func(T, error)) (T, error) {
	done := make(chan blockingResult[T], 1)
	go func() {
		value, err := fn()
		done <- blockingResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-ctx.Done():
		go func() {
			res := <-done
			if abandon != nil {
				abandon(res.value, res.err)
			}
		}()
		var zero T
		return zero, contextError(ctx)
	}
}

// checkDEK enforces the 32-byte key material contract.
func checkDEK(dek []byte) error {
	if len(dek) != cryptoDomain.DEKSize {
		return apperrors.Wrap(
			cryptoDomain.ErrInvalidKeySize,
			fmt.Sprintf("expected %d bytes, got %d", cryptoDomain.DEKSize, len(dek)),
		)
	}
	return nil
}

// checkUnwrapped zeroes and rejects unwrapped material of the wrong size.
func checkUnwrapped(dek []byte) ([]byte, error) {
	if len(dek) != cryptoDomain.DEKSize {
		cryptoDomain.Zero(dek)
		return nil, apperrors.Wrap(
			cryptoDomain.ErrIntegrityFailure,
			fmt.Sprintf("unwrapped key has %d bytes", len(dek)),
		)
	}
	return dek, nil
}
