package encryption

import (
	"fmt"

	"vfm-go/internal/config"
	"vfm-go/internal/vfm"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil for "none": blobs are stored as given.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (vfm.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
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
