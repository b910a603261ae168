package encryption

import (
	"fmt"

	"bwkp-go/internal/bwkp"
	"bwkp-go/internal/config"
)

// NewEncryptorFromConfig returns the dump encryptor for cfg. An empty type
// means age.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (bwkp.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, fmt.Errorf("age encryption requires public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
