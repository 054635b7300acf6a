package tlsutil

import (
	"crypto/tls"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/hsmvault/internal/errors"
	"github.com/allisson/hsmvault/internal/testutil"
)

func TestLoadClientTLSConfig(t *testing.T) {
	pki := testutil.NewTestPKI(t)

	t.Run("Success_CertificateAndCA", func(t *testing.T) {
		cfg, err := LoadClientTLSConfig(pki.ClientCertFile, pki.ClientKeyFile, pki.CACertFile)
		require.NoError(t, err)
		assert.Len(t, cfg.Certificates, 1)
		assert.NotNil(t, cfg.RootCAs)
		assert.Equal(t, uint16(tls.VersionTLS12), cfg.MinVersion)
	})

	t.Run("Success_EmptyCAKeepsSystemRoots", func(t *testing.T) {
		cfg, err := LoadClientTLSConfig(pki.ClientCertFile, pki.ClientKeyFile, "")
		require.NoError(t, err)
		assert.Nil(t, cfg.RootCAs)
	})

	t.Run("Error_MissingKeyPair", func(t *testing.T) {
		_, err := LoadClientTLSConfig("/nonexistent/cert.pem", "/nonexistent/key.pem", "")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("Error_CABundleWithoutCertificates", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.pem")
		require.NoError(t, os.WriteFile(empty, []byte("not pem"), 0o600))

		_, err := LoadClientTLSConfig(pki.ClientCertFile, pki.ClientKeyFile, empty)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, err.Error(), "no certificates found")
	})
}

func TestLoadServerTLSConfig(t *testing.T) {
	pki := testutil.NewTestPKI(t)

	t.Run("Success_RequiresVerifiedClientCertificates", func(t *testing.T) {
		cfg, err := LoadServerTLSConfig(pki.ServerCertFile, pki.ServerKeyFile, pki.CACertFile)
		require.NoError(t, err)
		assert.Equal(t, tls.RequireAndVerifyClientCert, cfg.ClientAuth)
		assert.NotNil(t, cfg.ClientCAs)
	})

	t.Run("Error_MissingClientCA", func(t *testing.T) {
		_, err := LoadServerTLSConfig(pki.ServerCertFile, pki.ServerKeyFile, "/nonexistent/ca.pem")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
