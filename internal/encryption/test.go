package encryption

import (
	"bytes"
	"fmt"
	"io"

	"plaza/internal/social"
)

// testHeader marks data as "encrypted" by the test encryptor. Decryption
// fails deterministically when the header is missing so error paths in
// snapshot restore can be exercised without real key material.
const testHeader = "PLZENC\x00\x00"

// TestEncryptor is a deterministic encryptor for tests. It prepends a fixed
// header to the plaintext and strips it on decryption. Never use outside of
// tests.
type TestEncryptor struct {
	configured bool
}

var _ social.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

// Setup marks the encryptor as configured. The passphrase is ignored.
func (e *TestEncryptor) Setup(passphrase string) error {
	e.configured = true
	return nil
}

// Encrypt writes the header followed by the plaintext.
func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, testHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

// Unlock returns a decryption context. The passphrase is ignored.
func (e *TestEncryptor) Unlock(passphrase string) (social.DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

// IsConfigured reports whether Setup has been called.
func (e *TestEncryptor) IsConfigured() bool {
	return e.configured
}

// TestDecryptionContext strips the test header.
type TestDecryptionContext struct{}

var _ social.DecryptionContext = (*TestDecryptionContext)(nil)

// Decrypt validates and strips the header, then copies the remainder.
func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, []byte(testHeader)) {
		return fmt.Errorf("invalid header: data was not produced by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
