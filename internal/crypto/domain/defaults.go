package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/allisson/hsmvault/internal/errors"
)

// PKCS#11 deployment profiles selectable by name.
const (
	ProfileLuna = "luna"
	ProfilePSE  = "pse"
)

// ProviderDefaults holds the environment-provided settings for every variant.
// PKCS#11 has a generic entry plus the Luna and PSE profiles, which differ in
// library path, slot, label and PIN.
type ProviderDefaults struct {
	Type    ProviderType
	Timeout time.Duration

	Simulated  SimulatedConfig
	PKCS11     PKCS11Config
	Luna       PKCS11Config
	PSE        PKCS11Config
	CloudKMS   CloudKMSConfig
	RemoteMTLS RemoteMTLSConfig
}

// Config builds the ProviderConfig for name, which is a provider type, a
// legacy alias or a PKCS#11 profile. An empty name selects d.Type.
// The result is not validated.
func (d ProviderDefaults) Config(name string) (ProviderConfig, error) {
	if strings.TrimSpace(name) == "" {
		name = string(d.Type)
	}

	providerType, err := ParseProviderType(name)
	if err != nil {
		return ProviderConfig{}, err
	}

	cfg := ProviderConfig{Type: providerType, Timeout: d.Timeout}
	switch providerType {
	case ProviderSimulated:
		s := d.Simulated
		cfg.Simulated = &s
	case ProviderPKCS11:
		p := d.pkcs11Profile(name)
		cfg.PKCS11 = &p
	case ProviderCloudKMS:
		k := d.CloudKMS
		cfg.CloudKMS = &k
	case ProviderRemoteMTLS:
		r := d.RemoteMTLS
		cfg.RemoteMTLS = &r
	default:
		return ProviderConfig{}, errors.Wrap(ErrInvalidProviderConfig, fmt.Sprintf("unsupported type %q", name))
	}
	return cfg, nil
}

func (d ProviderDefaults) pkcs11Profile(name string) PKCS11Config {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProfileLuna:
		return d.Luna
	case ProfilePSE:
		return d.PSE
	default:
		return d.PKCS11
	}
}
