package testutil

import (
	"plaza/internal/social"
	"plaza/internal/vault"
)

// NewTestVault creates a new in-memory vault for testing.
func NewTestVault() social.Vault {
	return vault.NewMemoryVault("test-vault")
}
