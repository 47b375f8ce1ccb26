package testutil

import (
	"plaza/internal/encryption"
	"plaza/internal/social"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() social.Encryptor {
	return encryption.NewTestEncryptor()
}
