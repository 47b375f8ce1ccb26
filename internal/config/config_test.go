package config

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/home/user/.local/share/plaza")

	if cfg.Database.Type != "sqlite" {
		t.Errorf("Database.Type = %q, want sqlite", cfg.Database.Type)
	}
	if len(cfg.Vaults) != 1 || cfg.Vaults[0].Type != "filesystem" {
		t.Errorf("Vaults = %+v, want one filesystem vault", cfg.Vaults)
	}
	if cfg.Encryption.Type != "age" {
		t.Errorf("Encryption.Type = %q, want age", cfg.Encryption.Type)
	}
	if cfg.LogDir != "/home/user/.local/share/plaza/log" {
		t.Errorf("LogDir = %q", cfg.LogDir)
	}
}

func TestManager_RoundTrip(t *testing.T) {
	cfg := NewConfig("/tmp/plaza")
	cfg.Vaults = append(cfg.Vaults, VaultConfig{
		Type:     "s3",
		Name:     "offsite",
		S3Bucket: "plaza-snapshots",
		S3Region: "eu-west-1",
	})
	cfg.Database = DatabaseConfig{Type: "postgres", DSN: "postgres://localhost/plaza"}

	m := &Manager{}
	var buf bytes.Buffer
	if err := m.Write(&buf, cfg); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.Database.Type != "postgres" || got.Database.DSN != cfg.Database.DSN {
		t.Errorf("Database = %+v, want %+v", got.Database, cfg.Database)
	}
	if len(got.Vaults) != 2 {
		t.Fatalf("got %d vaults, want 2", len(got.Vaults))
	}
	if got.Vaults[1].S3Bucket != "plaza-snapshots" {
		t.Errorf("Vaults[1] = %+v", got.Vaults[1])
	}
}

func TestManager_ReadRejectsMalformed(t *testing.T) {
	m := &Manager{}
	if _, err := m.Read(strings.NewReader("base_dir = [unclosed")); err == nil {
		t.Error("Read() expected error for malformed TOML")
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf", "plaza.toml")
	cfg := NewConfig(dir)

	if err := Init(path, cfg); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	got, err := ReadFromFile(path)
	if err != nil {
		t.Fatalf("ReadFromFile() error = %v", err)
	}
	if got.BaseDir != dir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
	}

	// Refuses to clobber an existing file.
	if err := Init(path, cfg); err == nil {
		t.Error("Init() expected error for existing file")
	}
}
