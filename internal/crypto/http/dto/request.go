// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	customValidation "github.com/allisson/hsmvault/internal/validation"
)

// SwitchProviderRequest selects one of the environment-configured provider
// types and adjusts its token credentials. Library paths, key files, endpoints,
// certificates and cloud credentials come only from the environment.
type SwitchProviderRequest struct {
	// HSMType is a provider type or alias: SIMULATED, PKCS11, PSE, LUNA, AWS, CLOUDKMS, REMOTE.
	HSMType        string `json:"hsmType"`
	TimeoutSeconds *int   `json:"timeoutSeconds,omitempty"`

	SlotID *uint `json:"slotId,omitempty"`
	// Label is the PKCS#11 key label. For AWS it is the key id.
	Label string `json:"label,omitempty"`
	PIN   string `json:"pin,omitempty"`
}

// Validate checks the request shape. Variant completeness is checked by ProviderConfig.
func (r *SwitchProviderRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.HSMType, validation.Required, customValidation.NotBlank),
		validation.Field(&r.TimeoutSeconds, validation.Min(1), validation.Max(300)),
		validation.Field(&r.Label, customValidation.NoWhitespace),
		validation.Field(&r.PIN, customValidation.NoWhitespace),
	)
}

// ToProviderConfig overlays the request on the defaults for its type.
func (r *SwitchProviderRequest) ToProviderConfig(
	defaults cryptoDomain.ProviderDefaults,
) (cryptoDomain.ProviderConfig, error) {
	cfg, err := defaults.Config(r.HSMType)
	if err != nil {
		return cryptoDomain.ProviderConfig{}, err
	}

	if r.TimeoutSeconds != nil {
		cfg.Timeout = time.Duration(*r.TimeoutSeconds) * time.Second
	}

	switch cfg.Type {
	case cryptoDomain.ProviderPKCS11:
		override(&cfg.PKCS11.KeyLabel, r.Label)
		override(&cfg.PKCS11.PIN, r.PIN)
		if r.SlotID != nil {
			cfg.PKCS11.SlotID = *r.SlotID
		}
	case cryptoDomain.ProviderCloudKMS:
		override(&cfg.CloudKMS.KeyID, r.Label)
	}
	return cfg, nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
