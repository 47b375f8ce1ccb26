package encryption

import (
	"fmt"

	"plaza/internal/config"
	"plaza/internal/social"
)

// NewEncryptorFromConfig creates an Encryptor based on configuration.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (social.Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %s", cfg.Type)
	}
}
