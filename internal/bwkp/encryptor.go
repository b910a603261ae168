package bwkp

import "io"

// Encryptor protects raw dump files at rest. Encryption needs only the
// recipient public key; decryption needs the passphrase-protected identity.
type Encryptor interface {
	// Setup generates a key pair once. The identity is stored encrypted with
	// passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the identity and returns a DecryptionContext for the
	// rest of the session. A wrong passphrase is an error.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked identity in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
