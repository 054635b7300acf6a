package service

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

func randomKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, cryptoDomain.DEKSize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestNewAESGCM(t *testing.T) {
	t.Run("Success_256BitKey", func(t *testing.T) {
		cipher, err := NewAESGCM(randomKey(t))
		assert.NoError(t, err)
		assert.NotNil(t, cipher)
	})

	t.Run("Error_128BitKey", func(t *testing.T) {
		cipher, err := NewAESGCM(make([]byte, 16))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
		assert.Nil(t, cipher)
	})

	t.Run("Error_64ByteKey", func(t *testing.T) {
		cipher, err := NewAESGCM(make([]byte, 64))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
		assert.Nil(t, cipher)
	})
}

func TestEnvelopeCipher_Encrypt(t *testing.T) {
	envelope := NewEnvelopeCipher()
	dek := randomKey(t)

	t.Run("Success_HelloWorldIs41Bytes", func(t *testing.T) {
		out, err := envelope.Encrypt([]byte("Hello, World!"), dek)
		require.NoError(t, err)
		assert.Len(t, out, 41)
	})

	t.Run("Success_EmptyPlaintextIs28Bytes", func(t *testing.T) {
		out, err := envelope.Encrypt(nil, dek)
		require.NoError(t, err)
		assert.Len(t, out, cryptoDomain.EnvelopeOverhead)
	})

	t.Run("Success_LengthIsPlaintextPlusOverhead", func(t *testing.T) {
		for _, size := range []int{1, 15, 16, 17, 1024, 65537} {
			plaintext := make([]byte, size)
			out, err := envelope.Encrypt(plaintext, dek)
			require.NoError(t, err)
			assert.Len(t, out, size+cryptoDomain.EnvelopeOverhead)
		}
	})

	t.Run("Success_FreshNoncePerCall", func(t *testing.T) {
		plaintext := []byte("same input")
		first, err := envelope.Encrypt(plaintext, dek)
		require.NoError(t, err)
		second, err := envelope.Encrypt(plaintext, dek)
		require.NoError(t, err)

		assert.NotEqual(t, first[:cryptoDomain.NonceSize], second[:cryptoDomain.NonceSize])
		assert.NotEqual(t, first, second)
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		out, err := envelope.Encrypt([]byte("data"), make([]byte, 31))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Nil(t, out)
	})
}

func TestEnvelopeCipher_Decrypt(t *testing.T) {
	envelope := NewEnvelopeCipher()
	dek := randomKey(t)
	plaintext := []byte("Hello, World!")

	sealed, err := envelope.Encrypt(plaintext, dek)
	require.NoError(t, err)

	t.Run("Success_RoundTrip", func(t *testing.T) {
		got, err := envelope.Decrypt(sealed, dek)
		require.NoError(t, err)
		assert.Equal(t, plaintext, got)
	})

	t.Run("Success_RoundTripEmptyPlaintext", func(t *testing.T) {
		out, err := envelope.Encrypt([]byte{}, dek)
		require.NoError(t, err)

		got, err := envelope.Decrypt(out, dek)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Error_TamperedCiphertext", func(t *testing.T) {
		for i := range sealed {
			tampered := bytes.Clone(sealed)
			tampered[i] ^= 0x01

			got, err := envelope.Decrypt(tampered, dek)
			assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityFailure, "byte %d", i)
			assert.ErrorIs(t, err, apperrors.ErrIntegrity)
			assert.Nil(t, got)
		}
	})

	t.Run("Error_WrongKey", func(t *testing.T) {
		got, err := envelope.Decrypt(sealed, randomKey(t))
		assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityFailure)
		assert.Nil(t, got)
	})

	t.Run("Error_ShortInput", func(t *testing.T) {
		for _, size := range []int{0, 1, 12, 27} {
			got, err := envelope.Decrypt(make([]byte, size), dek)
			assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
			assert.Nil(t, got)
		}
	})

	t.Run("Error_ShortInputWithBadKey", func(t *testing.T) {
		_, err := envelope.Decrypt(make([]byte, 10), make([]byte, 3))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidCiphertext)
	})

	t.Run("Error_TruncatedEnvelope", func(t *testing.T) {
		got, err := envelope.Decrypt(sealed[:len(sealed)-1], dek)
		assert.ErrorIs(t, err, cryptoDomain.ErrIntegrityFailure)
		assert.Nil(t, got)
	})

	t.Run("Error_InvalidKeySize", func(t *testing.T) {
		_, err := envelope.Decrypt(sealed, make([]byte, 16))
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidKeySize)
	})
}
