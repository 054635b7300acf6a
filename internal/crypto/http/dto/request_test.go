package dto

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

func testDefaults() cryptoDomain.ProviderDefaults {
	return cryptoDomain.ProviderDefaults{
		Type:      cryptoDomain.ProviderSimulated,
		Timeout:   10 * time.Second,
		Simulated: cryptoDomain.SimulatedConfig{KeyFilePath: "simulated_kek.key"},
		Luna: cryptoDomain.PKCS11Config{
			LibraryPath: "/opt/safenet/lunaclient/lib/libCryptoki2_64.so",
			SlotID:      1,
			KeyLabel:    "master_key",
			PIN:         "12341234",
		},
		CloudKMS: cryptoDomain.CloudKMSConfig{Region: "ap-northeast-2"},
	}
}

func intPtr(v int) *int    { return &v }
func uintPtr(v uint) *uint { return &v }

func TestSwitchProviderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		request SwitchProviderRequest
		wantErr bool
	}{
		{name: "type only", request: SwitchProviderRequest{HSMType: "SIMULATED"}},
		{name: "missing type", request: SwitchProviderRequest{}, wantErr: true},
		{name: "blank type", request: SwitchProviderRequest{HSMType: "  "}, wantErr: true},
		{name: "timeout too small", request: SwitchProviderRequest{HSMType: "LUNA", TimeoutSeconds: intPtr(-5)}, wantErr: true},
		{name: "timeout too large", request: SwitchProviderRequest{HSMType: "LUNA", TimeoutSeconds: intPtr(301)}, wantErr: true},
		{name: "timeout ok", request: SwitchProviderRequest{HSMType: "LUNA", TimeoutSeconds: intPtr(30)}},
		{name: "pin with spaces", request: SwitchProviderRequest{HSMType: "LUNA", PIN: " 1234"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.request.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSwitchProviderRequest_ToProviderConfig(t *testing.T) {
	defaults := testDefaults()

	t.Run("Success_LunaDefaults", func(t *testing.T) {
		req := SwitchProviderRequest{HSMType: "LUNA"}

		cfg, err := req.ToProviderConfig(defaults)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.ProviderPKCS11, cfg.Type)
		assert.Equal(t, "12341234", cfg.PKCS11.PIN)
		assert.Equal(t, uint(1), cfg.PKCS11.SlotID)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Success_LunaOverrides", func(t *testing.T) {
		req := SwitchProviderRequest{
			HSMType:        "LUNA",
			PIN:            "0000",
			Label:          "other_key",
			SlotID:         uintPtr(0),
			TimeoutSeconds: intPtr(3),
		}

		cfg, err := req.ToProviderConfig(defaults)
		require.NoError(t, err)
		assert.Equal(t, "0000", cfg.PKCS11.PIN)
		assert.Equal(t, "other_key", cfg.PKCS11.KeyLabel)
		assert.Equal(t, uint(0), cfg.PKCS11.SlotID)
		assert.Equal(t, 3*time.Second, cfg.Timeout)
		assert.Equal(t, "12341234", defaults.Luna.PIN)
	})

	t.Run("Success_AWSLabelIsKeyID", func(t *testing.T) {
		req := SwitchProviderRequest{HSMType: "AWS", Label: "alias/master"}

		cfg, err := req.ToProviderConfig(defaults)
		require.NoError(t, err)
		assert.Equal(t, "alias/master", cfg.CloudKMS.KeyID)
		assert.Equal(t, "ap-northeast-2", cfg.CloudKMS.Region)
	})

	t.Run("Success_PathsComeFromEnvironment", func(t *testing.T) {
		var req SwitchProviderRequest
		require.NoError(t, json.Unmarshal([]byte(`{
			"hsmType": "LUNA",
			"libraryPath": "./data/evil.so",
			"keyFilePath": "./data/kek.key"
		}`), &req))
		require.NoError(t, req.Validate())

		cfg, err := req.ToProviderConfig(defaults)
		require.NoError(t, err)
		assert.Equal(t, "/opt/safenet/lunaclient/lib/libCryptoki2_64.so", cfg.PKCS11.LibraryPath)

		req = SwitchProviderRequest{}
		require.NoError(t, json.Unmarshal([]byte(`{"hsmType": "SIMULATED", "keyFilePath": "./data/kek.key"}`), &req))
		cfg, err = req.ToProviderConfig(defaults)
		require.NoError(t, err)
		assert.Equal(t, "simulated_kek.key", cfg.Simulated.KeyFilePath)
	})

	t.Run("Success_RemoteUsesEnvironment", func(t *testing.T) {
		withRemote := defaults
		withRemote.RemoteMTLS = cryptoDomain.RemoteMTLSConfig{
			URL:            "https://proxy:8443",
			ClientCertFile: "client.pem",
			ClientKeyFile:  "client-key.pem",
			CACertFile:     "ca.pem",
		}
		var req SwitchProviderRequest
		require.NoError(t, json.Unmarshal([]byte(`{"hsmType": "REMOTE", "url": "https://attacker"}`), &req))

		cfg, err := req.ToProviderConfig(withRemote)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.ProviderRemoteMTLS, cfg.Type)
		assert.Equal(t, "https://proxy:8443", cfg.RemoteMTLS.URL)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Error_UnknownType", func(t *testing.T) {
		req := SwitchProviderRequest{HSMType: "ENIGMA"}

		_, err := req.ToProviderConfig(defaults)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidProviderConfig)
	})
}
