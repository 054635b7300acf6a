package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/hsmvault/internal/crypto/domain"
	apperrors "github.com/allisson/hsmvault/internal/errors"
)

// AESGCMCipher implements the AEAD interface using AES-256-GCM
// (Advanced Encryption Standard with Galois/Counter Mode).
//
// Security properties:
//   - 256-bit key size
//   - 12-byte nonce (96 bits, randomly generated per encryption)
//   - 16-byte authentication tag (128 bits, appended to ciphertext)
//
// Thread safety:
//
//	The cipher instance is stateless and safe for concurrent use from multiple
//	goroutines. Each encryption operation generates a unique nonce independently.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates a new AES-256-GCM cipher instance.
//
// The key must be exactly 32 bytes. The key schedule is copied by the AES
// block, so callers may zero the key slice once this returns.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.DEKSize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt encrypts plaintext with a fresh random nonce and optional AAD.
// The returned ciphertext has the 16-byte tag appended.
func (a *AESGCMCipher) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, a.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext = a.aead.Seal(nil, nonce, plaintext, aad)
	return ciphertext, nonce, nil
}

// Decrypt authenticates and decrypts ciphertext. Any authentication failure
// is reported as ErrIntegrityFailure and no plaintext is returned.
func (a *AESGCMCipher) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != a.aead.NonceSize() {
		return nil, cryptoDomain.ErrInvalidCiphertext
	}
	plaintext, err := a.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, apperrors.Join(cryptoDomain.ErrIntegrityFailure, err)
	}
	return plaintext, nil
}

// seal produces the envelope layout nonce || ciphertext || tag.
func seal(aead AEAD, plaintext []byte) ([]byte, error) {
	ciphertext, nonce, err := aead.Encrypt(plaintext, nil)
	if err != nil {
		return nil, err
	}
	envelope := make([]byte, 0, len(nonce)+len(ciphertext))
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)
	return envelope, nil
}

// open reverses seal. Inputs shorter than MinEnvelopeSize are rejected before
// any cryptographic work.
func open(aead AEAD, envelope []byte) ([]byte, error) {
	if err := checkEnvelope(envelope); err != nil {
		return nil, err
	}
	nonce := envelope[:cryptoDomain.NonceSize]
	ciphertext := envelope[cryptoDomain.NonceSize:]
	return aead.Decrypt(ciphertext, nonce, nil)
}

func checkEnvelope(envelope []byte) error {
	if len(envelope) < cryptoDomain.MinEnvelopeSize {
		return apperrors.Wrap(
			cryptoDomain.ErrInvalidCiphertext,
			fmt.Sprintf("envelope too short: %d bytes", len(envelope)),
		)
	}
	return nil
}
