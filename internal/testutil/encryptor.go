package testutil

import (
	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/encryption"
)

// NewTestEncryptor returns the keyless test encryptor.
func NewTestEncryptor() bwkp.Encryptor {
	return encryption.NewTestEncryptor()
}
