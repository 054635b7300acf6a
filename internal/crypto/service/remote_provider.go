package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
	"github.com/allisson/hsmvault/internal/tlsutil"
)

const (
	remoteHealthTimeout   = 5 * time.Second
	remoteMaxResponseSize = 1 << 20
)

// RemoteMTLSProvider delegates wrapping to an HSM proxy reached over mutual TLS.
type RemoteMTLSProvider struct {
	lifecycle
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewRemoteMTLSProvider builds a pooled HTTPS client presenting the configured
// client certificate and trusting only the configured CA.
func NewRemoteMTLSProvider(
	cfg cryptoDomain.RemoteMTLSConfig,
	timeout time.Duration,
	logger *slog.Logger,
) (*RemoteMTLSProvider, error) {
	tlsConfig, err := tlsutil.LoadClientTLSConfig(cfg.ClientCertFile, cfg.ClientKeyFile, cfg.CACertFile)
	if err != nil {
		return nil, apperrors.Join(cryptoDomain.ErrInvalidProviderConfig, err)
	}

	transport := cleanhttp.DefaultPooledTransport()
	transport.TLSClientConfig = tlsConfig

	return NewRemoteMTLSProviderWithClient(cfg.URL, &http.Client{Transport: transport}, timeout, logger), nil
}

// NewRemoteMTLSProviderWithClient uses an existing HTTP client.
func NewRemoteMTLSProviderWithClient(
	baseURL string,
	client *http.Client,
	timeout time.Duration,
	logger *slog.Logger,
) *RemoteMTLSProvider {
	return &RemoteMTLSProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Type returns ProviderRemoteMTLS.
func (p *RemoteMTLSProvider) Type() cryptoDomain.ProviderType {
	return cryptoDomain.ProviderRemoteMTLS
}

// Wrap posts the key material to /encrypt.
func (p *RemoteMTLSProvider) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := checkDEK(dek); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	var resp cryptoDomain.RemoteEncryptResponse
	status, err := p.post(ctx, "/encrypt", cryptoDomain.RemoteEncryptRequest{
		Plaintext: base64.StdEncoding.EncodeToString(dek),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" || status != http.StatusOK {
		return nil, remoteFailure(status, resp.Code, resp.Error)
	}

	wrapped, err := base64.StdEncoding.DecodeString(resp.Ciphertext)
	if err != nil || len(wrapped) == 0 {
		return nil, apperrors.Wrap(cryptoDomain.ErrBackendUnavailable, "remote HSM returned malformed ciphertext")
	}
	return wrapped, nil
}

// Unwrap posts a wrapped key to /decrypt.
func (p *RemoteMTLSProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(wrapped) == 0 {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidCiphertext, "empty wrapped key")
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	var resp cryptoDomain.RemoteDecryptResponse
	status, err := p.post(ctx, "/decrypt", cryptoDomain.RemoteDecryptRequest{
		Ciphertext: base64.StdEncoding.EncodeToString(wrapped),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != "" || status != http.StatusOK {
		return nil, remoteFailure(status, resp.Code, resp.Error)
	}

	dek, err := base64.StdEncoding.DecodeString(resp.Plaintext)
	if err != nil {
		return nil, apperrors.Wrap(cryptoDomain.ErrBackendUnavailable, "remote HSM returned malformed plaintext")
	}
	return checkUnwrapped(dek)
}

// Probe calls GET /health.
func (p *RemoteMTLSProvider) Probe(ctx context.Context) error {
	if err := p.probeable(); err != nil {
		return err
	}

	timeout := min(p.timeout, remoteHealthTimeout)
	if timeout <= 0 {
		timeout = remoteHealthTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return apperrors.Join(cryptoDomain.ErrInvalidProviderConfig, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return mapTransportError(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, remoteMaxResponseSize))

	if resp.StatusCode != http.StatusOK {
		return remoteFailure(resp.StatusCode, "", "health check failed")
	}

	if err := p.activate(); err != nil {
		return err
	}
	p.logger.Info("connected to remote HSM", slog.String("url", p.baseURL))
	return nil
}

// Retire drops pooled connections.
func (p *RemoteMTLSProvider) Retire(ctx context.Context) error {
	if !p.retire() {
		return nil
	}
	p.client.CloseIdleConnections()
	p.logger.Info("remote HSM provider retired", slog.String("url", p.baseURL))
	return nil
}

// post sends body as JSON and decodes the reply into out. Non-JSON replies
// leave out untouched so the status code alone drives the mapping.
func (p *RemoteMTLSProvider) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, apperrors.Join(cryptoDomain.ErrInvalidProviderConfig, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, mapTransportError(ctx, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, remoteMaxResponseSize))
	if err != nil {
		return 0, mapTransportError(ctx, err)
	}
	if err := json.Unmarshal(raw, out); err != nil && resp.StatusCode == http.StatusOK {
		return 0, apperrors.Join(cryptoDomain.ErrBackendUnavailable, fmt.Errorf("invalid remote HSM response: %w", err))
	}
	return resp.StatusCode, nil
}

// remoteFailure maps an error reply. A recognized code wins over the status.
func remoteFailure(status int, code, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	cause := fmt.Errorf("remote HSM: %s (status %d)", message, status)

	switch code {
	case cryptoDomain.RemoteCodeInvalidInput, cryptoDomain.RemoteCodeInvalidCiphertext:
		return apperrors.Join(cryptoDomain.ErrInvalidCiphertext, cause)
	case cryptoDomain.RemoteCodeIntegrityFailure:
		return apperrors.Join(cryptoDomain.ErrIntegrityFailure, cause)
	case cryptoDomain.RemoteCodeNotFound:
		return apperrors.Join(cryptoDomain.ErrKeyNotFound, cause)
	case cryptoDomain.RemoteCodeAuthFailure:
		return apperrors.Join(cryptoDomain.ErrAuthFailure, cause)
	case cryptoDomain.RemoteCodeTimeout:
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, cause)
	case cryptoDomain.RemoteCodeBackendUnavailable:
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, cause)
	}

	switch status {
	case http.StatusBadRequest:
		return apperrors.Join(cryptoDomain.ErrInvalidCiphertext, cause)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Join(cryptoDomain.ErrAuthFailure, cause)
	case http.StatusNotFound:
		return apperrors.Join(cryptoDomain.ErrKeyNotFound, cause)
	case http.StatusUnprocessableEntity:
		return apperrors.Join(cryptoDomain.ErrIntegrityFailure, cause)
	case http.StatusGatewayTimeout:
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, cause)
	default:
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, cause)
	}
}

// mapTransportError classifies client failures. Certificate verification
// failures and TLS alerts from the peer are authentication failures.
func mapTransportError(ctx context.Context, err error) error {
	if apperrors.Is(err, context.DeadlineExceeded) || apperrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	}

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		invalidCert x509.CertificateInvalidError
		hostnameErr x509.HostnameError
		alertErr    tls.AlertError
		opErr       *net.OpError
	)
	switch {
	case apperrors.As(err, &verifyErr),
		apperrors.As(err, &unknownAuth),
		apperrors.As(err, &invalidCert),
		apperrors.As(err, &hostnameErr),
		apperrors.As(err, &alertErr):
		return apperrors.Join(cryptoDomain.ErrAuthFailure, err)
	case apperrors.As(err, &opErr) && opErr.Op == "remote error":
		return apperrors.Join(cryptoDomain.ErrAuthFailure, err)
	}

	return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
}
