package app

import (
	"fmt"
	"os"
	"time"

	"plaza/internal/config"
	"plaza/internal/database"
	"plaza/internal/encryption"
	"plaza/internal/social"
	"plaza/internal/vault"
)

// App is the application layer between the CLI and the social service.
// It constructs all dependencies from config, exposes snapshot and
// maintenance operations, and manages resource lifecycle on Close.
type App struct {
	cfg       *config.Config
	store     social.Store
	vault     social.Vault
	encryptor social.Encryptor
	service   *social.Service
	idgen     social.IDGenerator
	logFile   *os.File
}

// NewApp creates a fully wired App from the given config.
// The caller must call Close when done.
func NewApp(cfg *config.Config) (*App, error) {
	if len(cfg.Vaults) == 0 {
		return nil, fmt.Errorf("no vaults configured")
	}
	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	store, err := database.NewStoreFromConfig(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	svc := social.NewService(store, &slogAdapter{l: logger}, social.RealClock{})

	return &App{
		cfg:       cfg,
		store:     store,
		vault:     v,
		encryptor: enc,
		service:   svc,
		idgen:     social.UUIDGenerator{},
		logFile:   logFile,
	}, nil
}

// Service returns the wired social service for domain operations.
func (a *App) Service() *social.Service {
	return a.service
}

// SetupEncryption generates snapshot encryption keys protected by the
// given passphrase.
func (a *App) SetupEncryption(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption is already configured")
	}
	return a.encryptor.Setup(passphrase)
}

// SnapshotCreate exports every record to an archive and stores it in the
// vault. When encryption is configured the archive is encrypted before
// upload. Returns the new snapshot id.
func (a *App) SnapshotCreate() (string, error) {
	tmp, err := os.CreateTemp("", "plaza-snapshot-*.jsonl")
	if err != nil {
		return "", fmt.Errorf("creating temp file for snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.service.ExportSnapshot(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("exporting snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing snapshot file: %w", err)
	}

	uploadPath := tmpPath
	if a.encryptor.IsConfigured() {
		encPath, err := a.encryptArchive(tmpPath)
		if err != nil {
			return "", err
		}
		defer os.Remove(encPath)
		uploadPath = encPath
	}

	id := a.idgen.New()
	if err := a.uploadArchive(id, uploadPath); err != nil {
		return "", err
	}
	return id, nil
}

// SnapshotRestore fetches the archive with the given id from the vault and
// imports its records into the store. passphrase unlocks the decryption key
// and is only used when encryption is configured.
func (a *App) SnapshotRestore(id string, passphrase string) error {
	tmp, err := os.CreateTemp("", "plaza-restore-*.jsonl")
	if err != nil {
		return fmt.Errorf("creating temp file for restore: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.vault.GetSnapshot(id, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("fetching snapshot %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing restore file: %w", err)
	}

	importPath := tmpPath
	if a.encryptor.IsConfigured() {
		dctx, err := a.encryptor.Unlock(passphrase)
		if err != nil {
			return fmt.Errorf("unlocking decryption key: %w", err)
		}
		plainPath, err := decryptArchive(dctx, tmpPath)
		if err != nil {
			return err
		}
		defer os.Remove(plainPath)
		importPath = plainPath
	}

	f, err := os.Open(importPath)
	if err != nil {
		return fmt.Errorf("opening archive for import: %w", err)
	}
	defer f.Close()

	if err := a.service.ImportSnapshot(f); err != nil {
		return fmt.Errorf("importing snapshot %s: %w", id, err)
	}
	return nil
}

// SnapshotList returns the snapshots stored in the vault, newest first.
func (a *App) SnapshotList() ([]social.SnapshotInfo, error) {
	return a.vault.ListSnapshots()
}

// Verify checks the integrity of every stored record.
func (a *App) Verify() ([]social.VerifyProblem, error) {
	return a.service.Verify()
}

// Close releases all resources.
func (a *App) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}

// encryptArchive encrypts the archive at path into a new temp file and
// returns its path. The caller owns the returned file.
func (a *App) encryptArchive(path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive for encryption: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "plaza-snapshot-*.age")
	if err != nil {
		return "", fmt.Errorf("creating temp file for encrypted archive: %w", err)
	}
	outPath := out.Name()

	if err := a.encryptor.Encrypt(in, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("encrypting archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("closing encrypted archive: %w", err)
	}
	return outPath, nil
}

func decryptArchive(dctx social.DecryptionContext, path string) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening archive for decryption: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp("", "plaza-restore-plain-*.jsonl")
	if err != nil {
		return "", fmt.Errorf("creating temp file for decrypted archive: %w", err)
	}
	outPath := out.Name()

	if err := dctx.Decrypt(in, out); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", fmt.Errorf("decrypting archive: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("closing decrypted archive: %w", err)
	}
	return outPath, nil
}

// uploadArchive opens the archive at path and streams it into the vault.
func (a *App) uploadArchive(id, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}

	if err := a.vault.PutSnapshot(id, f, info.Size()); err != nil {
		return fmt.Errorf("uploading snapshot to vault: %w", err)
	}
	return nil
}
