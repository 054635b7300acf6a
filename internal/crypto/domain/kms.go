package domain

import "context"

// KMSKeeper is a portable handle on a managed key. *secrets.Keeper from
// gocloud.dev implements it for awskms, gcpkms, azurekeyvault, hashivault
// and base64key URLs.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}
