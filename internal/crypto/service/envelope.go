package service

import (
	"fmt"
)

// envelopeCipher implements EnvelopeCipher with AES-256-GCM and no associated data.
type envelopeCipher struct{}

// NewEnvelopeCipher creates the file envelope cipher.
func NewEnvelopeCipher() EnvelopeCipher {
	return &envelopeCipher{}
}

// Encrypt seals plaintext under dek. The output is always len(plaintext)+28 bytes.
func (e *envelopeCipher) Encrypt(plaintext, dek []byte) ([]byte, error) {
	aead, err := NewAESGCM(dek)
	if err != nil {
		return nil, err
	}

	envelope, err := seal(aead, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt envelope: %w", err)
	}
	return envelope, nil
}

// Decrypt opens an envelope produced by Encrypt. Length is checked before the key.
func (e *envelopeCipher) Decrypt(envelope, dek []byte) ([]byte, error) {
	if err := checkEnvelope(envelope); err != nil {
		return nil, err
	}

	aead, err := NewAESGCM(dek)
	if err != nil {
		return nil, err
	}
	return open(aead, envelope)
}
