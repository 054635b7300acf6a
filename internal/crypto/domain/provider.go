package domain

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/hsmvault/internal/errors"
)

// DefaultProviderTimeout bounds a single backend call when ProviderConfig.Timeout is zero.
const DefaultProviderTimeout = 10 * time.Second

// ProviderType is the configuration tag selecting a KEK provider variant.
//
// Selection is driven solely by this tag. A simulated provider is only ever
// built when the tag says so; there is no implicit fallback.
type ProviderType string

const (
	// ProviderSimulated keeps a 32-byte KEK in a local file and wraps with AES-256-GCM.
	ProviderSimulated ProviderType = "simulated"

	// ProviderPKCS11 wraps with CKM_AES_KEY_WRAP inside a PKCS#11 module.
	ProviderPKCS11 ProviderType = "pkcs11"

	// ProviderCloudKMS wraps through a managed key service.
	ProviderCloudKMS ProviderType = "cloudkms"

	// ProviderRemoteMTLS wraps through an HSM fronting service reached over mutual TLS.
	ProviderRemoteMTLS ProviderType = "remote_mtls"
)

// ParseProviderType converts a configuration string into a ProviderType.
// Legacy deployment names are accepted: PSE and LUNA select PKCS#11, AWS selects
// the cloud KMS and REMOTE selects the mTLS proxy.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulated":
		return ProviderSimulated, nil
	case "pkcs11", "pse", "luna":
		return ProviderPKCS11, nil
	case "cloudkms", "aws", "kms":
		return ProviderCloudKMS, nil
	case "remote_mtls", "remote", "mtls":
		return ProviderRemoteMTLS, nil
	default:
		return "", errors.Wrap(ErrInvalidProviderConfig, fmt.Sprintf("unknown provider type %q", s))
	}
}

// ProviderState is the lifecycle state of a provider instance.
type ProviderState int32

const (
	// StateUninitialized is the state of a constructed provider that has not passed its probe.
	StateUninitialized ProviderState = iota
	// StateActive is the only state from which wrap and unwrap may be served.
	StateActive
	// StateRetired is terminal; the instance refuses further operations.
	StateRetired
)

// String returns the lowercase state name.
func (s ProviderState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateRetired:
		return "retired"
	default:
		return "unknown"
	}
}

// SimulatedConfig configures the local-file KEK provider.
type SimulatedConfig struct {
	KeyFilePath string
}

// Validate checks the simulated provider configuration.
func (c *SimulatedConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.KeyFilePath, validation.Required),
	)
}

// PKCS11Config configures the PKCS#11 KEK provider.
type PKCS11Config struct {
	LibraryPath string
	SlotID      uint
	KeyLabel    string
	PIN         string
}

// Validate checks the PKCS#11 provider configuration.
func (c *PKCS11Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LibraryPath, validation.Required),
		validation.Field(&c.KeyLabel, validation.Required),
		validation.Field(&c.PIN, validation.Required),
	)
}

// CloudKMSConfig configures the managed key service provider.
//
// When KeyURI is set the provider opens a portable keeper (awskms://, gcpkms://,
// azurekeyvault://, hashivault://, base64key://). Otherwise KeyID and Region
// address an AWS KMS key, optionally with static credentials and a custom endpoint.
type CloudKMSConfig struct {
	KeyID           string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Endpoint        string
	KeyURI          string
}

// Validate checks the cloud KMS provider configuration.
func (c *CloudKMSConfig) Validate() error {
	direct := c.KeyURI == ""
	return validation.ValidateStruct(c,
		validation.Field(&c.KeyID, validation.When(direct, validation.Required)),
		validation.Field(&c.Region, validation.When(direct, validation.Required)),
		validation.Field(&c.AccessKeyID, validation.When(c.SecretAccessKey != "", validation.Required)),
		validation.Field(&c.SecretAccessKey, validation.When(c.AccessKeyID != "", validation.Required)),
		validation.Field(&c.Endpoint, validation.By(absoluteURL)),
	)
}

// RemoteMTLSConfig configures the remote HSM provider reached over mutual TLS.
// Certificate and key fields are paths to PEM files.
type RemoteMTLSConfig struct {
	URL            string
	ClientCertFile string
	ClientKeyFile  string
	CACertFile     string
}

// Validate checks the remote mTLS provider configuration.
func (c *RemoteMTLSConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.By(httpsURL)),
		validation.Field(&c.ClientCertFile, validation.Required),
		validation.Field(&c.ClientKeyFile, validation.Required),
		validation.Field(&c.CACertFile, validation.Required),
	)
}

// ProviderConfig is the tagged union handed to the provider registry.
// Exactly the variant named by Type must be set.
type ProviderConfig struct {
	Type    ProviderType
	Timeout time.Duration

	Simulated  *SimulatedConfig
	PKCS11     *PKCS11Config
	CloudKMS   *CloudKMSConfig
	RemoteMTLS *RemoteMTLSConfig
}

// Validate checks that the tag and its variant agree and the variant is complete.
// Errors wrap ErrInvalidProviderConfig.
func (c *ProviderConfig) Validate() error {
	variant := func(t ProviderType) validation.Rule {
		return validation.When(c.Type == t, validation.Required).Else(validation.Nil)
	}

	err := validation.ValidateStruct(c,
		validation.Field(&c.Type,
			validation.Required,
			validation.In(ProviderSimulated, ProviderPKCS11, ProviderCloudKMS, ProviderRemoteMTLS),
		),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Simulated, variant(ProviderSimulated)),
		validation.Field(&c.PKCS11, variant(ProviderPKCS11)),
		validation.Field(&c.CloudKMS, variant(ProviderCloudKMS)),
		validation.Field(&c.RemoteMTLS, variant(ProviderRemoteMTLS)),
	)
	if err != nil {
		return errors.Join(ErrInvalidProviderConfig, err)
	}
	return nil
}

// EffectiveTimeout returns the per-call timeout, falling back to DefaultProviderTimeout.
func (c *ProviderConfig) EffectiveTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultProviderTimeout
	}
	return c.Timeout
}

// Redacted returns a copy safe to log or return to clients.
func (c ProviderConfig) Redacted() ProviderConfig {
	out := c
	if c.Simulated != nil {
		s := *c.Simulated
		out.Simulated = &s
	}
	if c.PKCS11 != nil {
		p := *c.PKCS11
		p.PIN = mask(p.PIN)
		out.PKCS11 = &p
	}
	if c.CloudKMS != nil {
		k := *c.CloudKMS
		k.SecretAccessKey = mask(k.SecretAccessKey)
		k.SessionToken = mask(k.SessionToken)
		k.KeyURI = maskKeyURI(k.KeyURI)
		out.CloudKMS = &k
	}
	if c.RemoteMTLS != nil {
		r := *c.RemoteMTLS
		out.RemoteMTLS = &r
	}
	return out
}

// ProviderStatus describes the provider currently held by the registry.
type ProviderStatus struct {
	Type        ProviderType
	State       ProviderState
	ActivatedAt time.Time
	Config      ProviderConfig
	Healthy     bool
	ProbeError  string
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// maskKeyURI hides inline key material carried by base64key:// URIs.
func maskKeyURI(uri string) string {
	const inline = "base64key://"
	if strings.HasPrefix(uri, inline) && len(uri) > len(inline) {
		return inline + "****"
	}
	return uri
}

func absoluteURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return validation.NewError("validation_url", "must be an absolute URL")
	}
	return nil
}

func httpsURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return validation.NewError("validation_https_url", "must be an https URL")
	}
	return nil
}
