package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProviderType(t *testing.T) {
	tests := []struct {
		input    string
		expected ProviderType
	}{
		{"simulated", ProviderSimulated},
		{"SIMULATED", ProviderSimulated},
		{"pkcs11", ProviderPKCS11},
		{"PSE", ProviderPKCS11},
		{"luna", ProviderPKCS11},
		{"AWS", ProviderCloudKMS},
		{"cloudkms", ProviderCloudKMS},
		{"remote_mtls", ProviderRemoteMTLS},
		{" REMOTE ", ProviderRemoteMTLS},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseProviderType(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	t.Run("Error_UnknownType", func(t *testing.T) {
		_, err := ParseProviderType("byte-reversal")
		assert.ErrorIs(t, err, ErrInvalidProviderConfig)
	})
}

func TestProviderConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{
			name: "valid simulated",
			cfg: ProviderConfig{
				Type:      ProviderSimulated,
				Simulated: &SimulatedConfig{KeyFilePath: "simulated_kek.key"},
			},
		},
		{
			name: "valid pkcs11",
			cfg: ProviderConfig{
				Type: ProviderPKCS11,
				PKCS11: &PKCS11Config{
					LibraryPath: "/usr/lib/softhsm/libsofthsm2.so",
					KeyLabel:    "master_key",
					PIN:         "1234",
				},
			},
		},
		{
			name: "valid cloudkms with key id",
			cfg: ProviderConfig{
				Type:     ProviderCloudKMS,
				CloudKMS: &CloudKMSConfig{KeyID: "alias/kek", Region: "ap-northeast-2"},
			},
		},
		{
			name: "valid cloudkms with key uri",
			cfg: ProviderConfig{
				Type:     ProviderCloudKMS,
				CloudKMS: &CloudKMSConfig{KeyURI: "base64key://"},
			},
		},
		{
			name: "valid remote mtls",
			cfg: ProviderConfig{
				Type: ProviderRemoteMTLS,
				RemoteMTLS: &RemoteMTLSConfig{
					URL:            "https://hsm-proxy:8443",
					ClientCertFile: "client.crt",
					ClientKeyFile:  "client.key",
					CACertFile:     "ca.crt",
				},
			},
		},
		{
			name:    "missing type",
			cfg:     ProviderConfig{Simulated: &SimulatedConfig{KeyFilePath: "k"}},
			wantErr: true,
		},
		{
			name:    "tag without variant",
			cfg:     ProviderConfig{Type: ProviderPKCS11},
			wantErr: true,
		},
		{
			name: "two variants set",
			cfg: ProviderConfig{
				Type:      ProviderSimulated,
				Simulated: &SimulatedConfig{KeyFilePath: "k"},
				CloudKMS:  &CloudKMSConfig{KeyURI: "base64key://"},
			},
			wantErr: true,
		},
		{
			name: "pkcs11 without pin",
			cfg: ProviderConfig{
				Type:   ProviderPKCS11,
				PKCS11: &PKCS11Config{LibraryPath: "/lib.so", KeyLabel: "kek"},
			},
			wantErr: true,
		},
		{
			name: "cloudkms without region",
			cfg: ProviderConfig{
				Type:     ProviderCloudKMS,
				CloudKMS: &CloudKMSConfig{KeyID: "alias/kek"},
			},
			wantErr: true,
		},
		{
			name: "cloudkms with half credentials",
			cfg: ProviderConfig{
				Type: ProviderCloudKMS,
				CloudKMS: &CloudKMSConfig{
					KeyID:       "alias/kek",
					Region:      "us-east-1",
					AccessKeyID: "AKIA",
				},
			},
			wantErr: true,
		},
		{
			name: "remote mtls over plain http",
			cfg: ProviderConfig{
				Type: ProviderRemoteMTLS,
				RemoteMTLS: &RemoteMTLSConfig{
					URL:            "http://hsm-proxy:8443",
					ClientCertFile: "client.crt",
					ClientKeyFile:  "client.key",
					CACertFile:     "ca.crt",
				},
			},
			wantErr: true,
		},
		{
			name: "negative timeout",
			cfg: ProviderConfig{
				Type:      ProviderSimulated,
				Timeout:   -time.Second,
				Simulated: &SimulatedConfig{KeyFilePath: "k"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProviderConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestProviderConfig_EffectiveTimeout(t *testing.T) {
	cfg := ProviderConfig{}
	assert.Equal(t, DefaultProviderTimeout, cfg.EffectiveTimeout())

	cfg.Timeout = 3 * time.Second
	assert.Equal(t, 3*time.Second, cfg.EffectiveTimeout())
}

func TestProviderConfig_Redacted(t *testing.T) {
	cfg := ProviderConfig{
		Type:   ProviderPKCS11,
		PKCS11: &PKCS11Config{LibraryPath: "/lib.so", KeyLabel: "kek", PIN: "1234"},
	}

	redacted := cfg.Redacted()

	assert.Equal(t, "****", redacted.PKCS11.PIN)
	assert.Equal(t, "1234", cfg.PKCS11.PIN, "original config must not be modified")

	kms := ProviderConfig{
		Type: ProviderCloudKMS,
		CloudKMS: &CloudKMSConfig{
			KeyID:           "alias/kek",
			Region:          "us-east-1",
			AccessKeyID:     "AKIA",
			SecretAccessKey: "secret",
		},
	}.Redacted()
	assert.Equal(t, "AKIA", kms.CloudKMS.AccessKeyID)
	assert.Equal(t, "****", kms.CloudKMS.SecretAccessKey)
	assert.Empty(t, kms.CloudKMS.SessionToken)

	keeper := ProviderConfig{
		Type:     ProviderCloudKMS,
		CloudKMS: &CloudKMSConfig{KeyURI: "base64key://c2VjcmV0LWtleQ=="},
	}.Redacted()
	assert.Equal(t, "base64key://****", keeper.CloudKMS.KeyURI)

	aws := ProviderConfig{
		Type:     ProviderCloudKMS,
		CloudKMS: &CloudKMSConfig{KeyURI: "awskms://alias/kek?region=us-east-1"},
	}.Redacted()
	assert.Equal(t, "awskms://alias/kek?region=us-east-1", aws.CloudKMS.KeyURI)
}

func TestProviderState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "retired", StateRetired.String())
	assert.Equal(t, "unknown", ProviderState(42).String())
}
