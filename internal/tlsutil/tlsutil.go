// Package tlsutil builds mutual TLS configurations from PEM files.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// LoadClientTLSConfig returns a client configuration presenting certFile/keyFile
// and trusting only the CA bundle in caFile. An empty caFile keeps the system roots.
func LoadClientTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrInvalidInput, fmt.Errorf("failed to load client certificate: %w", err))
	}

	cfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}

	if caFile != "" {
		pool, err := loadCertPool(caFile)
		if err != nil {
			return nil, err
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// LoadServerTLSConfig returns a server configuration that requires client
// certificates signed by the CA bundle in clientCAFile.
func LoadServerTLSConfig(certFile, keyFile, clientCAFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrInvalidInput, fmt.Errorf("failed to load server certificate: %w", err))
	}

	pool, err := loadCertPool(clientCAFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func loadCertPool(path string) (*x509.CertPool, error) {
	pemData, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return nil, apperrors.Join(apperrors.ErrInvalidInput, fmt.Errorf("failed to read CA bundle: %w", err))
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemData) {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("no certificates found in %s", path))
	}
	return pool, nil
}
