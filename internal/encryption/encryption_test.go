package encryption

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"plaza/internal/config"
)

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	enc := NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "keys", "plaza.pub"),
		PrivateKeyPath: filepath.Join(dir, "keys", "plaza.key"),
	})

	if enc.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup")
	}
	if err := enc.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !enc.IsConfigured() {
		t.Fatal("IsConfigured() = false after Setup")
	}

	plaintext := []byte(`{"format":"plaza-snapshot-v1"}` + "\n")
	var ciphertext bytes.Buffer
	if err := enc.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(ciphertext.Bytes(), []byte("plaza-snapshot")) {
		t.Error("ciphertext leaks plaintext")
	}

	t.Run("correct passphrase decrypts", func(t *testing.T) {
		dctx, err := enc.Unlock("correct horse")
		if err != nil {
			t.Fatalf("Unlock() error = %v", err)
		}
		var out bytes.Buffer
		if err := dctx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &out); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(out.Bytes(), plaintext) {
			t.Errorf("got %q, want %q", out.Bytes(), plaintext)
		}
	})

	t.Run("wrong passphrase fails to unlock", func(t *testing.T) {
		if _, err := enc.Unlock("battery staple"); err == nil {
			t.Error("Unlock() expected error for wrong passphrase")
		}
	})
}

func TestTestEncryptor(t *testing.T) {
	enc := NewTestEncryptor()

	if enc.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}
	if err := enc.Setup("ignored"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !enc.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}

	var ciphertext bytes.Buffer
	if err := enc.Encrypt(strings.NewReader("payload"), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	dctx, err := enc.Unlock("ignored")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var out bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader(ciphertext.Bytes()), &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != "payload" {
		t.Errorf("got %q, want %q", out.String(), "payload")
	}

	t.Run("rejects data without the header", func(t *testing.T) {
		var out bytes.Buffer
		if err := dctx.Decrypt(strings.NewReader("raw bytes without header"), &out); err == nil {
			t.Error("Decrypt() expected error for unframed data")
		}
	})
}

func TestNewEncryptorFromConfig(t *testing.T) {
	cases := []struct {
		typ     string
		wantErr bool
	}{
		{"age", false},
		{"", false},
		{"test", false},
		{"rot13", true},
	}
	for _, tc := range cases {
		_, err := NewEncryptorFromConfig(config.EncryptionConfig{Type: tc.typ})
		if (err != nil) != tc.wantErr {
			t.Errorf("NewEncryptorFromConfig(%q) error = %v, wantErr %v", tc.typ, err, tc.wantErr)
		}
	}
}
