package domain

// Envelope and key sizes for AES-256-GCM envelope encryption.
//
// An envelope is laid out as nonce || ciphertext || tag:
//
//	[0:12)          nonce
//	[12:len-16)     ciphertext
//	[len-16:len)    authentication tag
const (
	// DEKSize is the size of a raw data encryption key in bytes (AES-256).
	DEKSize = 32

	// KEKSize is the size of a locally held key encryption key in bytes.
	KEKSize = 32

	// NonceSize is the GCM nonce size in bytes (96 bits).
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes (128 bits).
	TagSize = 16

	// EnvelopeOverhead is the number of bytes an envelope adds to its plaintext.
	EnvelopeOverhead = NonceSize + TagSize

	// MinEnvelopeSize is the shortest valid envelope (empty plaintext).
	MinEnvelopeSize = EnvelopeOverhead
)
