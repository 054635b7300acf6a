// Package testutil provides fixtures shared by package tests.
//
// MTLS Fixtures:
//
//	pki := testutil.NewTestPKI(t)
//	server := httptest.NewUnstartedServer(handler)
//	server.TLS = pki.ServerTLSConfig(t)
//	server.StartTLS()
//
// The generated files live under t.TempDir() and are removed with the test.
package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestPKI is a throwaway certificate authority with one server and one client
// certificate, written as PEM files.
type TestPKI struct {
	CACertFile     string
	ServerCertFile string
	ServerKeyFile  string
	ClientCertFile string
	ClientKeyFile  string

	caCert *x509.Certificate
	caKey  *ecdsa.PrivateKey
	dir    string
}

// NewTestPKI creates a CA plus server (127.0.0.1, localhost) and client certificates.
func NewTestPKI(t *testing.T) *TestPKI {
	t.Helper()

	dir := t.TempDir()
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTemplate := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "hsmvault test CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, caKey.Public(), caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	pki := &TestPKI{caCert: caCert, caKey: caKey, dir: dir}
	pki.CACertFile = writePEM(t, dir, "ca.pem", "CERTIFICATE", caDER)
	pki.ServerCertFile, pki.ServerKeyFile = pki.IssueCertificate(t, "server", x509.ExtKeyUsageServerAuth)
	pki.ClientCertFile, pki.ClientKeyFile = pki.IssueCertificate(t, "client", x509.ExtKeyUsageClientAuth)
	return pki
}

// IssueCertificate signs a new leaf certificate and returns the cert and key paths.
func (p *TestPKI) IssueCertificate(t *testing.T, name string, usage x509.ExtKeyUsage) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: name},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{usage},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, p.caCert, key.Public(), p.caKey)
	require.NoError(t, err)

	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	certFile := writePEM(t, p.dir, name+".pem", "CERTIFICATE", der)
	keyFile := writePEM(t, p.dir, name+"-key.pem", "PRIVATE KEY", keyDER)
	return certFile, keyFile
}

// ServerTLSConfig requires client certificates issued by this CA.
func (p *TestPKI) ServerTLSConfig(t *testing.T) *tls.Config {
	t.Helper()

	cert, err := tls.LoadX509KeyPair(p.ServerCertFile, p.ServerKeyFile)
	require.NoError(t, err)

	pool := x509.NewCertPool()
	pool.AddCert(p.caCert)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}
}

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
