package app_test

import (
	"errors"
	"testing"

	"plaza/internal/app"
	"plaza/internal/config"
	"plaza/internal/social"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Database.Type = "memory"
	cfg.Vaults = []config.VaultConfig{{Type: "memory", Name: "test"}}
	cfg.Encryption.Type = "test"

	a, err := app.NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestApp_SnapshotRoundTrip(t *testing.T) {
	a := newTestApp(t)

	if _, err := a.Service().Register("alice", ""); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	p, err := a.Service().CreatePost("alice", "hello from plaza")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	if err := a.SetupEncryption("pw"); err != nil {
		t.Fatalf("SetupEncryption() error = %v", err)
	}

	id, err := a.SnapshotCreate()
	if err != nil {
		t.Fatalf("SnapshotCreate() error = %v", err)
	}

	infos, err := a.SnapshotList()
	if err != nil {
		t.Fatalf("SnapshotList() error = %v", err)
	}
	if len(infos) != 1 || infos[0].ID != id {
		t.Errorf("SnapshotList() = %v, want one entry %q", infos, id)
	}

	// Lose data, then restore it from the archive.
	if err := a.Service().DeletePost(p.ID); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if err := a.SnapshotRestore(id, "pw"); err != nil {
		t.Fatalf("SnapshotRestore() error = %v", err)
	}

	got, err := a.Service().Post(p.ID)
	if err != nil {
		t.Fatalf("Post() after restore error = %v", err)
	}
	if got.Content != "hello from plaza" {
		t.Errorf("Content = %q", got.Content)
	}
}

func TestApp_SnapshotRestoreMissing(t *testing.T) {
	a := newTestApp(t)

	err := a.SnapshotRestore("no-such-snapshot", "pw")
	if !errors.Is(err, social.ErrNotFound) {
		t.Errorf("SnapshotRestore() error = %v, want ErrNotFound", err)
	}
}

func TestApp_RequiresVault(t *testing.T) {
	cfg := config.NewConfig(t.TempDir())
	cfg.Database.Type = "memory"
	cfg.Vaults = nil

	if _, err := app.NewApp(cfg); err == nil {
		t.Error("NewApp() expected error with no vaults configured")
	}
}
