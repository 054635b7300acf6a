package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/pkcs11"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

const tempKeyLabelPrefix = "hsmvault-tmp-"

// PKCS11Provider wraps DEKs with CKM_AES_KEY_WRAP against a KEK found by label.
//
// The session opened at construction is held for the provider lifetime. PKCS#11
// sessions are not safe for concurrent use, so every call on the session goes
// through mu. Backend calls run on a worker goroutine: when a caller times out
// the worker keeps the lock until the call returns and its temporary key object
// has been destroyed.
type PKCS11Provider struct {
	lifecycle
	cfg     cryptoDomain.PKCS11Config
	pool    *PKCS11ModulePool
	module  PKCS11Module
	session pkcs11.SessionHandle
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

// NewPKCS11Provider loads the library, opens a serial RW session on the slot
// and logs in with the PIN.
func NewPKCS11Provider(
	ctx context.Context,
	cfg cryptoDomain.PKCS11Config,
	timeout time.Duration,
	pool *PKCS11ModulePool,
	logger *slog.Logger,
) (*PKCS11Provider, error) {
	p := &PKCS11Provider{
		cfg:     cfg,
		pool:    pool,
		timeout: timeout,
		logger:  logger,
	}

	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	_, err := callBlocking(ctx, func() (struct{}, error) {
		return struct{}{}, p.connect()
	}, func(_ struct{}, err error) {
		if err == nil {
			p.disconnect()
		}
	})
	if err != nil {
		return nil, err
	}

	logger.Info("PKCS#11 session opened",
		slog.String("library", cfg.LibraryPath),
		slog.Uint64("slot_id", uint64(cfg.SlotID)),
		slog.String("key_label", cfg.KeyLabel),
	)
	return p, nil
}

// Type returns ProviderPKCS11.
func (p *PKCS11Provider) Type() cryptoDomain.ProviderType {
	return cryptoDomain.ProviderPKCS11
}

// Wrap imports the key material as a temporary session object and wraps it.
func (p *PKCS11Provider) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := checkDEK(dek); err != nil {
		return nil, err
	}

	material := bytes.Clone(dek)
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	return callBlocking(ctx, func() ([]byte, error) {
		defer cryptoDomain.Zero(material)
		return p.wrap(ctx, material)
	}, nil)
}

// Unwrap recovers the key material into a temporary object and reads its value.
func (p *PKCS11Provider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(wrapped) == 0 {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidCiphertext, "empty wrapped key")
	}

	input := bytes.Clone(wrapped)
	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	return callBlocking(ctx, func() ([]byte, error) {
		return p.unwrap(ctx, input)
	}, func(dek []byte, _ error) {
		cryptoDomain.Zero(dek)
	})
}

// Probe checks the session is logged in and the KEK label resolves.
func (p *PKCS11Provider) Probe(ctx context.Context) error {
	if err := p.probeable(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	_, err := callBlocking(ctx, func() (struct{}, error) {
		return struct{}{}, p.probe()
	}, nil)
	if err != nil {
		return err
	}
	return p.activate()
}

// Retire releases its token login, closes the session and releases the library
// reference. The token is logged out only when no other provider shares it.
// It waits for an in-progress backend call to finish.
func (p *PKCS11Provider) Retire(ctx context.Context) error {
	if !p.retire() {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- p.disconnect() }()

	select {
	case err := <-done:
		p.logger.Info("PKCS#11 provider retired", slog.String("key_label", p.cfg.KeyLabel))
		return err
	case <-ctx.Done():
		p.logger.Warn("PKCS#11 provider retirement still waiting for a backend call",
			slog.String("key_label", p.cfg.KeyLabel),
		)
		return contextError(ctx)
	}
}

func (p *PKCS11Provider) connect() error {
	module, err := p.pool.Acquire(p.cfg.LibraryPath)
	if err != nil {
		return err
	}

	session, err := module.OpenSession(p.cfg.SlotID, pkcs11.CKF_SERIAL_SESSION|pkcs11.CKF_RW_SESSION)
	if err != nil {
		_ = p.pool.Release(p.cfg.LibraryPath)
		return mapPKCS11Error(err)
	}

	if err := p.pool.Login(p.cfg.LibraryPath, p.cfg.SlotID, module, session, p.cfg.PIN); err != nil {
		_ = module.CloseSession(session)
		_ = p.pool.Release(p.cfg.LibraryPath)
		return err
	}

	p.module = module
	p.session = session
	return nil
}

func (p *PKCS11Provider) disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.module == nil {
		return nil
	}
	p.closed = true

	var errs []error
	if err := p.pool.Logout(p.cfg.LibraryPath, p.cfg.SlotID, p.module, p.session); err != nil {
		errs = append(errs, fmt.Errorf("logout: %w", err))
	}
	if err := p.module.CloseSession(p.session); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := p.pool.Release(p.cfg.LibraryPath); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *PKCS11Provider) probe() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return cryptoDomain.ErrProviderRetired
	}

	info, err := p.module.GetSessionInfo(p.session)
	if err != nil {
		return mapPKCS11Error(err)
	}
	if info.State != pkcs11.CKS_RW_USER_FUNCTIONS && info.State != pkcs11.CKS_RO_USER_FUNCTIONS {
		return apperrors.Wrap(cryptoDomain.ErrAuthFailure, "PKCS#11 session is not logged in")
	}

	_, err = p.findKEK()
	return err
}

func (p *PKCS11Provider) wrap(ctx context.Context, material []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, cryptoDomain.ErrProviderRetired
	}
	// The caller may have given up while we waited for the session.
	if err := contextError(ctx); err != nil {
		return nil, err
	}

	kek, err := p.findKEK()
	if err != nil {
		return nil, err
	}

	tmp, err := p.module.CreateObject(p.session, tempKeyTemplate(material))
	if err != nil {
		return nil, mapPKCS11Error(err)
	}
	defer p.destroyTemp(tmp)

	wrapped, err := p.module.WrapKey(p.session, keyWrapMechanism(), kek, tmp)
	if err != nil {
		return nil, mapPKCS11Error(err)
	}
	return wrapped, nil
}

func (p *PKCS11Provider) unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, cryptoDomain.ErrProviderRetired
	}
	// The caller may have given up while we waited for the session.
	if err := contextError(ctx); err != nil {
		return nil, err
	}

	kek, err := p.findKEK()
	if err != nil {
		return nil, err
	}

	tmp, err := p.module.UnwrapKey(p.session, keyWrapMechanism(), kek, wrapped, unwrapTemplate())
	if err != nil {
		return nil, mapPKCS11Error(err)
	}
	defer p.destroyTemp(tmp)

	attrs, err := p.module.GetAttributeValue(p.session, tmp, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
	})
	if err != nil {
		return nil, mapPKCS11Error(err)
	}
	if len(attrs) != 1 {
		return nil, apperrors.Wrap(cryptoDomain.ErrBackendUnavailable, "PKCS#11 returned no key value")
	}
	return checkUnwrapped(bytes.Clone(attrs[0].Value))
}

// findKEK resolves the KEK label. The caller holds mu.
func (p *PKCS11Provider) findKEK() (pkcs11.ObjectHandle, error) {
	template := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, p.cfg.KeyLabel),
	}
	if err := p.module.FindObjectsInit(p.session, template); err != nil {
		return 0, mapPKCS11Error(err)
	}

	handles, _, err := p.module.FindObjects(p.session, 1)
	finalErr := p.module.FindObjectsFinal(p.session)
	if err != nil {
		return 0, mapPKCS11Error(err)
	}
	if finalErr != nil {
		return 0, mapPKCS11Error(finalErr)
	}
	if len(handles) == 0 {
		return 0, apperrors.Wrap(
			cryptoDomain.ErrKeyNotFound,
			fmt.Sprintf("no secret key labeled %q", p.cfg.KeyLabel),
		)
	}
	return handles[0], nil
}

// destroyTemp removes a temporary key object. The caller holds mu.
func (p *PKCS11Provider) destroyTemp(handle pkcs11.ObjectHandle) {
	if err := p.module.DestroyObject(p.session, handle); err != nil {
		p.logger.Error("failed to destroy temporary PKCS#11 key object",
			slog.Uint64("handle", uint64(handle)),
			slog.Any("error", err),
		)
	}
}

func keyWrapMechanism() []*pkcs11.Mechanism {
	return []*pkcs11.Mechanism{pkcs11.NewMechanism(pkcs11.CKM_AES_KEY_WRAP, nil)}
}

// tempKeyTemplate describes a session-only AES key holding DEK material.
// C_WrapKey requires CKA_EXTRACTABLE on the key being wrapped.
func tempKeyTemplate(material []byte) []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_AES),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, true),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, tempKeyLabelPrefix+uuid.NewString()),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE, material),
	}
}

// unwrapTemplate describes the session-only object produced by C_UnwrapKey.
// It must be readable so the DEK can be returned to the caller.
func unwrapTemplate() []*pkcs11.Attribute {
	return []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_SECRET_KEY),
		pkcs11.NewAttribute(pkcs11.CKA_KEY_TYPE, pkcs11.CKK_AES),
		pkcs11.NewAttribute(pkcs11.CKA_VALUE_LEN, cryptoDomain.DEKSize),
		pkcs11.NewAttribute(pkcs11.CKA_TOKEN, false),
		pkcs11.NewAttribute(pkcs11.CKA_PRIVATE, true),
		pkcs11.NewAttribute(pkcs11.CKA_SENSITIVE, false),
		pkcs11.NewAttribute(pkcs11.CKA_EXTRACTABLE, true),
		pkcs11.NewAttribute(pkcs11.CKA_LABEL, tempKeyLabelPrefix+uuid.NewString()),
	}
}
