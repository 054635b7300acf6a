package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, "./data", cfg.DataDir)
				assert.Empty(t, cfg.StorageURL)
				assert.Equal(t, int64(2<<30), cfg.MaxUploadSize)
				assert.Equal(t, "simulated", cfg.ProviderType)
				assert.Equal(t, 10*time.Second, cfg.ProviderTimeout)
				assert.Equal(t, "simulated_kek.key", cfg.SimulatedKEKPath)
				assert.Equal(t, "ap-northeast-2", cfg.AWSRegion)
				assert.Equal(t, "hsmvault", cfg.MetricsNamespace)
				assert.Equal(t, 8443, cfg.HSMProxyPort)
			},
		},
		{
			name: "load custom server configuration",
			envVars: map[string]string{
				"SERVER_HOST": "localhost",
				"SERVER_PORT": "9090",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "localhost", cfg.ServerHost)
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name: "load legacy HSM profiles",
			envVars: map[string]string{
				"LUNA_HSM_PIN":    "0000",
				"LUNA_HSM_SLOT":   "4",
				"PSE_HSM_LABEL":   "pse_key",
				"PSE_LIB_PATH":    "/usr/lib/libcryptoki.so",
				"PROVIDER_TYPE":   "luna",
				"PKCS11_LIB_PATH": "/usr/lib/softhsm/libsofthsm2.so",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0000", cfg.LunaPIN)
				assert.Equal(t, uint(4), cfg.LunaSlot)
				assert.Equal(t, "master_key", cfg.LunaLabel)
				assert.Equal(t, "pse_key", cfg.PSELabel)
				assert.Equal(t, "/usr/lib/libcryptoki.so", cfg.PSELibPath)
				assert.Equal(t, "luna", cfg.ProviderType)
				assert.Equal(t, "/usr/lib/softhsm/libsofthsm2.so", cfg.PKCS11LibPath)
			},
		},
		{
			name: "load custom storage and provider timeout",
			envVars: map[string]string{
				"STORAGE_URL":              "mem://",
				"MAX_UPLOAD_SIZE":          "1024",
				"PROVIDER_TIMEOUT_SECONDS": "3",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mem://", cfg.StorageURL)
				assert.Equal(t, int64(1024), cfg.MaxUploadSize)
				assert.Equal(t, 3*time.Second, cfg.ProviderTimeout)
			},
		},
		{
			name: "load custom log level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, "debug", cfg.GetGinMode())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestConfig_ProviderDefaults(t *testing.T) {
	cfg := &Config{
		ProviderType:     "pse",
		ProviderTimeout:  7 * time.Second,
		SimulatedKEKPath: "kek.key",
		PSELibPath:       "/opt/pse.so",
		PSESlot:          2,
		PSELabel:         "master_key",
		PSEPIN:           "1111",
		AWSRegion:        "ap-northeast-2",
		AWSKMSKeyID:      "alias/hsmvault",
		RemoteHSMURL:     "https://proxy:8443",
	}

	defaults := cfg.ProviderDefaults()

	assert.Equal(t, cryptoDomain.ProviderType("pse"), defaults.Type)
	assert.Equal(t, 7*time.Second, defaults.Timeout)
	assert.Equal(t, "kek.key", defaults.Simulated.KeyFilePath)
	assert.Equal(t, "alias/hsmvault", defaults.CloudKMS.KeyID)
	assert.Equal(t, "https://proxy:8443", defaults.RemoteMTLS.URL)

	providerCfg, err := defaults.Config("")
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.ProviderPKCS11, providerCfg.Type)
	require.NotNil(t, providerCfg.PKCS11)
	assert.Equal(t, "/opt/pse.so", providerCfg.PKCS11.LibraryPath)
	assert.Equal(t, uint(2), providerCfg.PKCS11.SlotID)
	assert.Equal(t, "1111", providerCfg.PKCS11.PIN)
}

func TestGetGinMode(t *testing.T) {
	assert.Equal(t, "release", (&Config{LogLevel: "info"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: ""}).GetGinMode())
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).GetGinMode())
}
