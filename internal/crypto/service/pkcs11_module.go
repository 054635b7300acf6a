package service

import (
	"fmt"
	"sync"

	"github.com/miekg/pkcs11"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// PKCS11Module is the subset of *pkcs11.Ctx used by the PKCS#11 provider.
type PKCS11Module interface {
	Initialize() error
	Finalize() error
	Destroy()
	OpenSession(slotID uint, flags uint) (pkcs11.SessionHandle, error)
	CloseSession(sh pkcs11.SessionHandle) error
	GetSessionInfo(sh pkcs11.SessionHandle) (pkcs11.SessionInfo, error)
	Login(sh pkcs11.SessionHandle, userType uint, pin string) error
	Logout(sh pkcs11.SessionHandle) error
	FindObjectsInit(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) error
	FindObjects(sh pkcs11.SessionHandle, max int) ([]pkcs11.ObjectHandle, bool, error)
	FindObjectsFinal(sh pkcs11.SessionHandle) error
	CreateObject(sh pkcs11.SessionHandle, temp []*pkcs11.Attribute) (pkcs11.ObjectHandle, error)
	DestroyObject(sh pkcs11.SessionHandle, oh pkcs11.ObjectHandle) error
	GetAttributeValue(
		sh pkcs11.SessionHandle,
		o pkcs11.ObjectHandle,
		a []*pkcs11.Attribute,
	) ([]*pkcs11.Attribute, error)
	WrapKey(
		sh pkcs11.SessionHandle,
		m []*pkcs11.Mechanism,
		wrappingKey, key pkcs11.ObjectHandle,
	) ([]byte, error)
	UnwrapKey(
		sh pkcs11.SessionHandle,
		m []*pkcs11.Mechanism,
		unwrappingKey pkcs11.ObjectHandle,
		wrappedKey []byte,
		a []*pkcs11.Attribute,
	) (pkcs11.ObjectHandle, error)
}

// PKCS11Loader loads a PKCS#11 shared library without initializing it.
type PKCS11Loader func(libraryPath string) (PKCS11Module, error)

// LoadPKCS11Library loads a module with github.com/miekg/pkcs11.
func LoadPKCS11Library(libraryPath string) (PKCS11Module, error) {
	ctx := pkcs11.New(libraryPath)
	if ctx == nil {
		return nil, fmt.Errorf("failed to load PKCS#11 library %s", libraryPath)
	}
	return ctx, nil
}

type pooledModule struct {
	module PKCS11Module
	refs   int
}

type tokenKey struct {
	library string
	slotID  uint
}

// PKCS11ModulePool shares one initialized module per library path and one
// login per token.
//
// C_Initialize and C_Finalize are process-wide for a library, and login state
// belongs to the token rather than the session. A provider being retired must
// neither finalize the module nor log out the token while its replacement
// still uses them.
type PKCS11ModulePool struct {
	mu      sync.Mutex
	loader  PKCS11Loader
	modules map[string]*pooledModule
	logins  map[tokenKey]int
}

// NewPKCS11ModulePool creates a pool. A nil loader uses LoadPKCS11Library.
func NewPKCS11ModulePool(loader PKCS11Loader) *PKCS11ModulePool {
	if loader == nil {
		loader = LoadPKCS11Library
	}
	return &PKCS11ModulePool{
		loader:  loader,
		modules: make(map[string]*pooledModule),
		logins:  make(map[tokenKey]int),
	}
}

// Acquire returns an initialized module for libraryPath and takes a reference.
func (p *PKCS11ModulePool) Acquire(libraryPath string) (PKCS11Module, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pm, ok := p.modules[libraryPath]; ok {
		pm.refs++
		return pm.module, nil
	}

	module, err := p.loader(libraryPath)
	if err != nil {
		return nil, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	if err := module.Initialize(); err != nil && !isPKCS11Error(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		module.Destroy()
		return nil, mapPKCS11Error(err)
	}

	p.modules[libraryPath] = &pooledModule{module: module, refs: 1}
	return module, nil
}

// Release drops a reference and finalizes the module when none remain.
func (p *PKCS11ModulePool) Release(libraryPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pm, ok := p.modules[libraryPath]
	if !ok {
		return nil
	}
	pm.refs--
	if pm.refs > 0 {
		return nil
	}

	delete(p.modules, libraryPath)
	err := pm.module.Finalize()
	pm.module.Destroy()
	if err != nil {
		return fmt.Errorf("failed to finalize PKCS#11 library: %w", err)
	}
	return nil
}

// Login logs session in as the normal user and counts the login against the
// token. A token that is already logged in is accepted.
func (p *PKCS11ModulePool) Login(
	libraryPath string,
	slotID uint,
	module PKCS11Module,
	session pkcs11.SessionHandle,
	pin string,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := module.Login(session, pkcs11.CKU_USER, pin)
	if err != nil && !isPKCS11Error(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
		return mapPKCS11Error(err)
	}
	p.logins[tokenKey{library: libraryPath, slotID: slotID}]++
	return nil
}

// Logout drops a login reference and calls C_Logout on session only when it
// was the last one held on the token.
func (p *PKCS11ModulePool) Logout(
	libraryPath string,
	slotID uint,
	module PKCS11Module,
	session pkcs11.SessionHandle,
) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := tokenKey{library: libraryPath, slotID: slotID}
	n := p.logins[key]
	if n == 0 {
		return nil
	}
	if n > 1 {
		p.logins[key] = n - 1
		return nil
	}

	delete(p.logins, key)
	if err := module.Logout(session); err != nil && !isPKCS11Error(err, pkcs11.CKR_USER_NOT_LOGGED_IN) {
		return err
	}
	return nil
}

// Logins reports how many providers hold a login on the token.
func (p *PKCS11ModulePool) Logins(libraryPath string, slotID uint) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.logins[tokenKey{library: libraryPath, slotID: slotID}]
}

// References reports how many providers hold libraryPath.
func (p *PKCS11ModulePool) References(libraryPath string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if pm, ok := p.modules[libraryPath]; ok {
		return pm.refs
	}
	return 0
}

func isPKCS11Error(err error, code uint) bool {
	var p11err pkcs11.Error
	return apperrors.As(err, &p11err) && uint(p11err) == code
}

// mapPKCS11Error translates a return value into the provider error taxonomy.
func mapPKCS11Error(err error) error {
	if err == nil {
		return nil
	}

	var p11err pkcs11.Error
	if !apperrors.As(err, &p11err) {
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	switch uint(p11err) {
	case pkcs11.CKR_PIN_INCORRECT,
		pkcs11.CKR_PIN_INVALID,
		pkcs11.CKR_PIN_LEN_RANGE,
		pkcs11.CKR_PIN_EXPIRED,
		pkcs11.CKR_PIN_LOCKED,
		pkcs11.CKR_USER_NOT_LOGGED_IN,
		pkcs11.CKR_USER_TYPE_INVALID:
		return apperrors.Join(cryptoDomain.ErrAuthFailure, err)
	case pkcs11.CKR_KEY_HANDLE_INVALID,
		pkcs11.CKR_OBJECT_HANDLE_INVALID,
		pkcs11.CKR_WRAPPING_KEY_HANDLE_INVALID,
		pkcs11.CKR_UNWRAPPING_KEY_HANDLE_INVALID:
		return apperrors.Join(cryptoDomain.ErrKeyNotFound, err)
	case pkcs11.CKR_WRAPPED_KEY_INVALID,
		pkcs11.CKR_ENCRYPTED_DATA_INVALID:
		return apperrors.Join(cryptoDomain.ErrIntegrityFailure, err)
	case pkcs11.CKR_WRAPPED_KEY_LEN_RANGE,
		pkcs11.CKR_ENCRYPTED_DATA_LEN_RANGE:
		return apperrors.Join(cryptoDomain.ErrInvalidCiphertext, err)
	default:
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}
}
