package dto

import (
	"strconv"
	"strings"
	"time"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

// ProviderStatusResponse describes the active KEK provider. Secrets are masked.
type ProviderStatusResponse struct {
	HSMType     string          `json:"hsmType"`
	State       string          `json:"state"`
	ActivatedAt time.Time       `json:"activatedAt"`
	Healthy     bool            `json:"healthy"`
	ProbeError  string          `json:"probeError,omitempty"`
	Timeout     string          `json:"timeout"`
	Config      ProviderDetails `json:"config"`
}

// ProviderDetails holds the variant settings shown to clients.
type ProviderDetails struct {
	KeyFilePath string `json:"keyFilePath,omitempty"`
	LibraryPath string `json:"libraryPath,omitempty"`
	SlotID      *uint  `json:"slotId,omitempty"`
	Label       string `json:"label,omitempty"`
	PIN         string `json:"pin,omitempty"`
	Region      string `json:"region,omitempty"`
	KeyID       string `json:"keyId,omitempty"`
	AccessKeyID string `json:"accessKeyId,omitempty"`
	SecretKey   string `json:"secretKey,omitempty"`
	Endpoint    string `json:"endpoint,omitempty"`
	KeyURI      string `json:"keyUri,omitempty"`
	URL         string `json:"url,omitempty"`
	ClientCert  string `json:"clientCertFile,omitempty"`
	CACert      string `json:"caCertFile,omitempty"`
}

// DefaultsResponse lists the environment defaults per provider profile.
type DefaultsResponse struct {
	HSMType   string           `json:"hsmType"`
	Simulated ProviderDetails  `json:"simulated"`
	PKCS11    ProviderDetails  `json:"pkcs11"`
	Luna      LegacyPKCS11View `json:"luna"`
	PSE       LegacyPKCS11View `json:"pse"`
	AWS       ProviderDetails  `json:"aws"`
	Remote    ProviderDetails  `json:"remote"`
}

// LegacyPKCS11View keeps the slot as a string, the shape existing clients read.
type LegacyPKCS11View struct {
	PIN         string `json:"pin"`
	SlotID      string `json:"slotId"`
	Label       string `json:"label"`
	LibraryPath string `json:"libraryPath"`
}

// MapStatusToResponse converts a registry status to an API response.
func MapStatusToResponse(status *cryptoDomain.ProviderStatus) ProviderStatusResponse {
	cfg := status.Config.Redacted()
	return ProviderStatusResponse{
		HSMType:     strings.ToUpper(string(status.Type)),
		State:       status.State.String(),
		ActivatedAt: status.ActivatedAt,
		Healthy:     status.Healthy,
		ProbeError:  status.ProbeError,
		Timeout:     cfg.EffectiveTimeout().String(),
		Config:      mapDetails(cfg),
	}
}

// MapDefaultsToResponse converts provider defaults to an API response with secrets masked.
func MapDefaultsToResponse(defaults cryptoDomain.ProviderDefaults) DefaultsResponse {
	redacted := func(c cryptoDomain.ProviderConfig) ProviderDetails { return mapDetails(c.Redacted()) }

	return DefaultsResponse{
		HSMType:   strings.ToUpper(string(defaults.Type)),
		Simulated: redacted(cryptoDomain.ProviderConfig{Simulated: &defaults.Simulated}),
		PKCS11:    redacted(cryptoDomain.ProviderConfig{PKCS11: &defaults.PKCS11}),
		Luna:      legacyView(defaults.Luna),
		PSE:       legacyView(defaults.PSE),
		AWS:       redacted(cryptoDomain.ProviderConfig{CloudKMS: &defaults.CloudKMS}),
		Remote:    redacted(cryptoDomain.ProviderConfig{RemoteMTLS: &defaults.RemoteMTLS}),
	}
}

func legacyView(p cryptoDomain.PKCS11Config) LegacyPKCS11View {
	masked := cryptoDomain.ProviderConfig{PKCS11: &p}.Redacted().PKCS11
	return LegacyPKCS11View{
		PIN:         masked.PIN,
		SlotID:      strconv.FormatUint(uint64(p.SlotID), 10),
		Label:       p.KeyLabel,
		LibraryPath: p.LibraryPath,
	}
}

func mapDetails(cfg cryptoDomain.ProviderConfig) ProviderDetails {
	var d ProviderDetails
	if s := cfg.Simulated; s != nil {
		d.KeyFilePath = s.KeyFilePath
	}
	if p := cfg.PKCS11; p != nil {
		slot := p.SlotID
		d.LibraryPath = p.LibraryPath
		d.SlotID = &slot
		d.Label = p.KeyLabel
		d.PIN = p.PIN
	}
	if k := cfg.CloudKMS; k != nil {
		d.Region = k.Region
		d.KeyID = k.KeyID
		d.AccessKeyID = k.AccessKeyID
		d.SecretKey = k.SecretAccessKey
		d.Endpoint = k.Endpoint
		d.KeyURI = k.KeyURI
	}
	if r := cfg.RemoteMTLS; r != nil {
		d.URL = r.URL
		d.ClientCert = r.ClientCertFile
		d.CACert = r.CACertFile
	}
	return d
}
