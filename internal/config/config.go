// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the API server will bind to.
	ServerHost string
	// ServerPort is the port number the API server will listen on.
	ServerPort int

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// StorageURL is a gocloud blob URL (s3://, mem://, file://). Empty means DataDir.
	StorageURL string
	// DataDir is the local directory used when StorageURL is empty.
	DataDir string
	// MaxUploadSize is the largest accepted upload in bytes.
	MaxUploadSize int64

	// RateLimitEnabled indicates whether per-IP rate limiting of the API is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second per client IP.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size per client IP.
	RateLimitBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int

	// ProviderType selects the KEK provider activated at startup. It accepts
	// provider types, legacy aliases and the luna/pse profiles.
	ProviderType string
	// ProviderTimeout bounds every backend call of the KEK provider.
	ProviderTimeout time.Duration

	// SimulatedKEKPath is the key file of the simulated provider.
	SimulatedKEKPath string

	// PKCS11LibPath, PKCS11Slot, PKCS11Label and PKCS11PIN configure the generic PKCS#11 provider.
	PKCS11LibPath string
	PKCS11Slot    uint
	PKCS11Label   string
	PKCS11PIN     string

	// LunaLibPath, LunaSlot, LunaLabel and LunaPIN configure the Luna profile.
	LunaLibPath string
	LunaSlot    uint
	LunaLabel   string
	LunaPIN     string

	// PSELibPath, PSESlot, PSELabel and PSEPIN configure the ProtectServer profile.
	PSELibPath string
	PSESlot    uint
	PSELabel   string
	PSEPIN     string

	// AWSRegion, AWSKMSKeyID and the AWS credentials address an AWS KMS key.
	AWSRegion          string
	AWSKMSKeyID        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	AWSEndpoint        string
	// KMSKeyURI is a portable keeper URL; it takes precedence over the AWS key id.
	KMSKeyURI string

	// RemoteHSMURL and the client certificate files address an HSM proxy.
	RemoteHSMURL     string
	RemoteClientCert string
	RemoteClientKey  string
	RemoteCACert     string

	// HSMProxyHost and HSMProxyPort are the listen address of the hsm-proxy command.
	HSMProxyHost string
	HSMProxyPort int
	// HSMProxyCertFile and HSMProxyKeyFile are the proxy's server certificate.
	HSMProxyCertFile string
	HSMProxyKeyFile  string
	// HSMProxyClientCAFile is the CA bundle client certificates must chain to.
	HSMProxyClientCAFile string
	// HSMProxyProviderType selects the provider behind the proxy.
	HSMProxyProviderType string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Storage
		StorageURL:    env.GetString("STORAGE_URL", ""),
		DataDir:       env.GetString("DATA_DIR", "./data"),
		MaxUploadSize: int64(env.GetInt("MAX_UPLOAD_SIZE", 2<<30)),

		// Rate Limiting (per client IP)
		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 10.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 20),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "hsmvault"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),

		// KEK provider
		ProviderType:     env.GetString("PROVIDER_TYPE", string(cryptoDomain.ProviderSimulated)),
		ProviderTimeout:  env.GetDuration("PROVIDER_TIMEOUT_SECONDS", 10, time.Second),
		SimulatedKEKPath: env.GetString("SIMULATED_KEK_PATH", "simulated_kek.key"),

		// Generic PKCS#11
		PKCS11LibPath: env.GetString("PKCS11_LIB_PATH", ""),
		PKCS11Slot:    uint(env.GetInt("PKCS11_SLOT", 0)),
		PKCS11Label:   env.GetString("PKCS11_LABEL", "master_key"),
		PKCS11PIN:     env.GetString("PKCS11_PIN", ""),

		// Luna profile
		LunaLibPath: env.GetString("LUNA_LIB_PATH", "/opt/safenet/lunaclient/lib/libCryptoki2_64.so"),
		LunaSlot:    uint(env.GetInt("LUNA_HSM_SLOT", 1)),
		LunaLabel:   env.GetString("LUNA_HSM_LABEL", "master_key"),
		LunaPIN:     env.GetString("LUNA_HSM_PIN", "12341234"),

		// ProtectServer profile
		PSELibPath: env.GetString("PSE_LIB_PATH", "/opt/safenet/protecttoolkit7/ptk/lib/libcryptoki.so"),
		PSESlot:    uint(env.GetInt("PSE_HSM_SLOT", 1)),
		PSELabel:   env.GetString("PSE_HSM_LABEL", "master_key"),
		PSEPIN:     env.GetString("PSE_HSM_PIN", "1111"),

		// Cloud KMS
		AWSRegion:          env.GetString("AWS_REGION", "ap-northeast-2"),
		AWSKMSKeyID:        env.GetString("AWS_KMS_KEY_ID", ""),
		AWSAccessKeyID:     env.GetString("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: env.GetString("AWS_SECRET_ACCESS_KEY", ""),
		AWSSessionToken:    env.GetString("AWS_SESSION_TOKEN", ""),
		AWSEndpoint:        env.GetString("AWS_KMS_ENDPOINT", ""),
		KMSKeyURI:          env.GetString("KMS_KEY_URI", ""),

		// Remote HSM proxy client
		RemoteHSMURL:     env.GetString("REMOTE_HSM_URL", ""),
		RemoteClientCert: env.GetString("REMOTE_HSM_CLIENT_CERT", ""),
		RemoteClientKey:  env.GetString("REMOTE_HSM_CLIENT_KEY", ""),
		RemoteCACert:     env.GetString("REMOTE_HSM_CA_CERT", ""),

		// HSM proxy server
		HSMProxyHost:         env.GetString("HSM_PROXY_HOST", "0.0.0.0"),
		HSMProxyPort:         env.GetInt("HSM_PROXY_PORT", 8443),
		HSMProxyCertFile:     env.GetString("HSM_PROXY_CERT_FILE", ""),
		HSMProxyKeyFile:      env.GetString("HSM_PROXY_KEY_FILE", ""),
		HSMProxyClientCAFile: env.GetString("HSM_PROXY_CLIENT_CA_FILE", ""),
		HSMProxyProviderType: env.GetString("HSM_PROXY_PROVIDER_TYPE", string(cryptoDomain.ProviderPKCS11)),
	}
}

// ProviderDefaults groups the provider settings for the registry and the
// defaults endpoint.
func (c *Config) ProviderDefaults() cryptoDomain.ProviderDefaults {
	return cryptoDomain.ProviderDefaults{
		Type:    cryptoDomain.ProviderType(c.ProviderType),
		Timeout: c.ProviderTimeout,
		Simulated: cryptoDomain.SimulatedConfig{
			KeyFilePath: c.SimulatedKEKPath,
		},
		PKCS11: cryptoDomain.PKCS11Config{
			LibraryPath: c.PKCS11LibPath,
			SlotID:      c.PKCS11Slot,
			KeyLabel:    c.PKCS11Label,
			PIN:         c.PKCS11PIN,
		},
		Luna: cryptoDomain.PKCS11Config{
			LibraryPath: c.LunaLibPath,
			SlotID:      c.LunaSlot,
			KeyLabel:    c.LunaLabel,
			PIN:         c.LunaPIN,
		},
		PSE: cryptoDomain.PKCS11Config{
			LibraryPath: c.PSELibPath,
			SlotID:      c.PSESlot,
			KeyLabel:    c.PSELabel,
			PIN:         c.PSEPIN,
		},
		CloudKMS: cryptoDomain.CloudKMSConfig{
			KeyID:           c.AWSKMSKeyID,
			Region:          c.AWSRegion,
			AccessKeyID:     c.AWSAccessKeyID,
			SecretAccessKey: c.AWSSecretAccessKey,
			SessionToken:    c.AWSSessionToken,
			Endpoint:        c.AWSEndpoint,
			KeyURI:          c.KMSKeyURI,
		},
		RemoteMTLS: cryptoDomain.RemoteMTLSConfig{
			URL:            c.RemoteHSMURL,
			ClientCertFile: c.RemoteClientCert,
			ClientKeyFile:  c.RemoteClientKey,
			CACertFile:     c.RemoteCACert,
		},
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file from the current directory up to the
// root directory and loads the first one found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
