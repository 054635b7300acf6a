package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/smithy-go"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// KMSAPI is the subset of the AWS KMS client used by CloudKMSProvider.
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
	DescribeKey(
		ctx context.Context,
		params *kms.DescribeKeyInput,
		optFns ...func(*kms.Options),
	) (*kms.DescribeKeyOutput, error)
}

// CloudKMSProvider wraps DEKs with AWS KMS Encrypt/Decrypt pinned to one key id.
type CloudKMSProvider struct {
	lifecycle
	client  KMSAPI
	keyID   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewCloudKMSProvider builds an AWS KMS client for the configured region.
//
// Static credentials are used when provided, otherwise the default chain.
// The SDK retryer is limited to a single attempt; retry policy belongs to callers.
func NewCloudKMSProvider(
	ctx context.Context,
	cfg cryptoDomain.CloudKMSConfig,
	timeout time.Duration,
	logger *slog.Logger,
) (*CloudKMSProvider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(1),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, apperrors.Join(cryptoDomain.ErrBackendUnavailable, fmt.Errorf("failed to load AWS config: %w", err))
	}

	var kmsOpts []func(*kms.Options)
	if cfg.Endpoint != "" {
		kmsOpts = append(kmsOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewCloudKMSProviderWithClient(kms.NewFromConfig(awsCfg, kmsOpts...), cfg.KeyID, timeout, logger), nil
}

// NewCloudKMSProviderWithClient uses an existing KMS client.
func NewCloudKMSProviderWithClient(
	client KMSAPI,
	keyID string,
	timeout time.Duration,
	logger *slog.Logger,
) *CloudKMSProvider {
	return &CloudKMSProvider{
		client:  client,
		keyID:   keyID,
		timeout: timeout,
		logger:  logger,
	}
}

// Type returns ProviderCloudKMS.
func (p *CloudKMSProvider) Type() cryptoDomain.ProviderType {
	return cryptoDomain.ProviderCloudKMS
}

// Wrap encrypts the key material under the configured KMS key.
func (p *CloudKMSProvider) Wrap(ctx context.Context, dek []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if err := checkDEK(dek); err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(p.keyID),
		Plaintext: dek,
	})
	if err != nil {
		return nil, mapKMSError(err)
	}
	return out.CiphertextBlob, nil
}

// Unwrap decrypts a blob produced by Wrap. KeyId is pinned so blobs from
// another key fail with ErrIntegrityFailure instead of decrypting.
func (p *CloudKMSProvider) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	if len(wrapped) == 0 {
		return nil, apperrors.Wrap(cryptoDomain.ErrInvalidCiphertext, "empty wrapped key")
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:          aws.String(p.keyID),
		CiphertextBlob: wrapped,
	})
	if err != nil {
		return nil, mapKMSError(err)
	}
	return checkUnwrapped(out.Plaintext)
}

// Probe describes the key and requires it to be enabled.
func (p *CloudKMSProvider) Probe(ctx context.Context) error {
	if err := p.probeable(); err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.client.DescribeKey(ctx, &kms.DescribeKeyInput{KeyId: aws.String(p.keyID)})
	if err != nil {
		return mapKMSError(err)
	}
	if out.KeyMetadata == nil {
		return apperrors.Wrap(cryptoDomain.ErrBackendUnavailable, "KMS returned no key metadata")
	}
	if out.KeyMetadata.KeyState != types.KeyStateEnabled {
		return apperrors.Wrap(
			cryptoDomain.ErrBackendUnavailable,
			fmt.Sprintf("KMS key is %s", out.KeyMetadata.KeyState),
		)
	}
	return p.activate()
}

// Retire stops serving. The SDK client holds no resources needing release.
func (p *CloudKMSProvider) Retire(ctx context.Context) error {
	if p.retire() {
		p.logger.Info("cloud KMS provider retired", slog.String("key_id", p.keyID))
	}
	return nil
}

// mapKMSError translates AWS KMS failures into the provider error taxonomy.
func mapKMSError(err error) error {
	if apperrors.Is(err, context.DeadlineExceeded) {
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	}

	var (
		notFound       *types.NotFoundException
		invalidCipher  *types.InvalidCiphertextException
		incorrectKey   *types.IncorrectKeyException
		disabled       *types.DisabledException
		invalidState   *types.KMSInvalidStateException
		keyUnavailable *types.KeyUnavailableException
		dependency     *types.DependencyTimeoutException
	)

	switch {
	case apperrors.As(err, &notFound):
		return apperrors.Join(cryptoDomain.ErrKeyNotFound, err)
	case apperrors.As(err, &invalidCipher), apperrors.As(err, &incorrectKey):
		return apperrors.Join(cryptoDomain.ErrIntegrityFailure, err)
	case apperrors.As(err, &dependency):
		return apperrors.Join(cryptoDomain.ErrBackendTimeout, err)
	case apperrors.As(err, &disabled), apperrors.As(err, &invalidState), apperrors.As(err, &keyUnavailable):
		return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
	}

	var apiErr smithy.APIError
	if apperrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException",
			"UnrecognizedClientException",
			"InvalidSignatureException",
			"IncompleteSignature",
			"InvalidClientTokenId",
			"ExpiredTokenException":
			return apperrors.Join(cryptoDomain.ErrAuthFailure, err)
		}
	}

	return apperrors.Join(cryptoDomain.ErrBackendUnavailable, err)
}
