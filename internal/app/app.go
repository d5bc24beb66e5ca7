package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"vfm-go/internal/config"
	"vfm-go/internal/database"
	"vfm-go/internal/database/migrations"
	"vfm-go/internal/encryption"
	"vfm-go/internal/model"
	"vfm-go/internal/vault"
	"vfm-go/internal/vfm"
)

// ErrNotLoggedIn is returned when a command needs a user and no live
// session is stored.
var ErrNotLoggedIn = errors.New("not logged in: run `vfm login` first")

// VFMApp is the application layer between the CLI and the vfm managers.
// It constructs all dependencies from config, keeps the login session
// between invocations, and releases the stores on Close.
type VFMApp struct {
	cfg      *config.Config
	store    vfm.MetadataStore
	blobs    vfm.BlobStore
	urls     *vault.URLRegistry
	enc      vfm.Encryptor
	sealed   *vault.EncryptedVault // nil without encryption
	services *vfm.Services
	sessions SessionFile
	clock    vfm.Clock
	op       *Operation
	logger   *slog.Logger
	logFile  *os.File
}

// NewVFMApp creates a fully wired VFMApp from the given config.
// operation identifies the CLI command being run (e.g. "FileUpload", "Serve").
// The caller must call Close when done.
func NewVFMApp(ctx context.Context, cfg *config.Config, operation, parameters string) (*VFMApp, error) {
	return newVFMApp(ctx, cfg, operation, parameters, os.Stderr, vfm.RealClock{}, vfm.UUIDGenerator{})
}

func newVFMApp(ctx context.Context, cfg *config.Config, operation, parameters string, stderr io.Writer, clock vfm.Clock, idgen vfm.IDGenerator) (*VFMApp, error) {
	op := NewOperation(operation, parameters, clock.Now())
	logger, logFile, err := newLogger(cfg.LogDir, op.ID, stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	a := &VFMApp{
		cfg:      cfg,
		sessions: SessionFile{Path: SessionPath(cfg.BaseDir)},
		clock:    clock,
		op:       op,
		logger:   logger,
		logFile:  logFile,
	}
	if err := a.wire(ctx, adapter, idgen); err != nil {
		a.Close()
		return nil, err
	}

	logger.Debug("operation started", "operation", op.Name, "parameters", op.Parameters)
	return a, nil
}

func (a *VFMApp) wire(ctx context.Context, logger vfm.Logger, idgen vfm.IDGenerator) error {
	store, err := database.NewStoreFromConfig(a.cfg.Database, a.clock, logger)
	if err != nil {
		return fmt.Errorf("creating metadata store: %w", err)
	}
	a.store = store

	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("initializing metadata store: %w", err)
	}
	if !store.Available() {
		logger.Warn("metadata store is unavailable; listings will be empty and writes will fail", "type", a.cfg.Database.Type)
	} else if s, ok := store.(*database.SQLiteStore); ok {
		if err := s.CheckMigrations(ctx); err != nil {
			return fmt.Errorf("database schema out of date: %w", err)
		}
	}

	a.urls = vault.NewURLRegistry()
	blobs, err := vault.NewBlobStoreFromConfig(ctx, a.cfg.Blobs, a.urls)
	if err != nil {
		return fmt.Errorf("creating blob store: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(a.cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	a.enc = enc
	if enc != nil {
		a.sealed = vault.NewEncryptedVault(blobs, enc, a.urls)
		blobs = a.sealed
	}

	if err := blobs.Init(ctx); err != nil {
		return fmt.Errorf("initializing blob store: %w", err)
	}
	a.blobs = blobs

	a.services = vfm.NewServices(store, blobs, logger, a.clock, idgen, vfm.Options{
		MaxUploadSize: a.cfg.Upload.MaxSize,
	})
	return nil
}

// Config returns the configuration the app was built from.
func (a *VFMApp) Config() *config.Config { return a.cfg }

// Services returns the managers.
func (a *VFMApp) Services() *vfm.Services { return a.services }

// Store returns the metadata store.
func (a *VFMApp) Store() vfm.MetadataStore { return a.store }

// URLs returns the registry that local object URLs are minted from.
func (a *VFMApp) URLs() *vault.URLRegistry { return a.urls }

// Logger returns the operation's logger.
func (a *VFMApp) Logger() *slog.Logger { return a.logger }

// Fail marks the operation as failed; Close logs it.
func (a *VFMApp) Fail(err error) {
	a.op.Fail()
	a.logger.Error("operation failed", "operation", a.op.Name, "error", err)
}

// CheckSetup verifies that both stores are usable.
func (a *VFMApp) CheckSetup() error {
	if !a.store.Available() {
		return fmt.Errorf("metadata store (%s) is unavailable", a.cfg.Database.Type)
	}
	if err := a.blobs.ValidateSetup(); err != nil {
		return fmt.Errorf("blob store (%s): %w", a.cfg.Blobs.Type, err)
	}
	return nil
}

// Encrypted reports whether blob content is encrypted at rest.
func (a *VFMApp) Encrypted() bool { return a.sealed != nil }

// NeedsUnlock reports whether reading content requires a passphrase first.
func (a *VFMApp) NeedsUnlock() bool {
	return a.sealed != nil && a.sealed.Locked()
}

// Unlock opens the private key so encrypted content can be read.
func (a *VFMApp) Unlock(passphrase string) error {
	if a.sealed == nil {
		return nil
	}
	return a.sealed.Unlock(passphrase)
}

// SetupEncryption generates the key pair protected by passphrase.
func (a *VFMApp) SetupEncryption(passphrase string) error {
	if a.enc == nil {
		return fmt.Errorf("encryption is disabled in the config")
	}
	if err := a.enc.Setup(passphrase); err != nil {
		return fmt.Errorf("setting up encryption: %w", err)
	}
	a.logger.Info("encryption keys created", "type", a.cfg.Encryption.Type)
	return nil
}

type passphraseChanger interface {
	ChangePassphrase(oldPassphrase, newPassphrase string) error
}

// ChangePassphrase re-protects the private key. Stored blobs are unaffected.
func (a *VFMApp) ChangePassphrase(oldPassphrase, newPassphrase string) error {
	pc, ok := a.enc.(passphraseChanger)
	if !ok {
		return fmt.Errorf("encryption type %q does not support changing the passphrase", a.cfg.Encryption.Type)
	}
	if err := pc.ChangePassphrase(oldPassphrase, newPassphrase); err != nil {
		return err
	}
	a.logger.Info("passphrase changed")
	return nil
}

// Login records the identity, starts a session and stores it for later
// commands.
func (a *VFMApp) Login(ctx context.Context, id vfm.Identity) (*model.User, error) {
	user, err := a.services.Accounts.SyncOnLogin(ctx, id)
	if err != nil {
		return nil, err
	}

	s, err := a.services.Accounts.CreateSession(ctx, user.ID, a.cfg.Session.TTL.Duration)
	if err != nil {
		return nil, err
	}

	if err := a.sessions.Write(&Session{
		Token:   s.SessionToken,
		UserID:  user.ID,
		Email:   user.Email,
		Expires: s.Expires,
	}); err != nil {
		return nil, err
	}
	a.logger.Info("logged in", "user", user.ID, "expires", s.Expires.Format(time.RFC3339))
	return user, nil
}

// Logout ends the stored session, if any.
func (a *VFMApp) Logout(ctx context.Context) error {
	s, err := a.sessions.Read()
	if err != nil {
		return err
	}
	if s != nil {
		if err := a.services.Accounts.EndSession(ctx, s.Token); err != nil {
			return err
		}
		a.logger.Info("logged out", "user", s.UserID)
	}
	return a.sessions.Clear()
}

// CurrentUser returns the user behind the stored session. An expired or
// ended session is cleared and reported as ErrNotLoggedIn.
func (a *VFMApp) CurrentUser(ctx context.Context) (*model.User, error) {
	s, err := a.sessions.Read()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotLoggedIn
	}

	user, err := a.services.Accounts.Identify(ctx, s.Token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		if err := a.sessions.Clear(); err != nil {
			return nil, err
		}
		return nil, ErrNotLoggedIn
	}
	return user, nil
}

func (a *VFMApp) sqlite() (*database.SQLiteStore, error) {
	s, ok := a.store.(*database.SQLiteStore)
	if !ok {
		return nil, fmt.Errorf("database type %q does not support this command", a.cfg.Database.Type)
	}
	return s, nil
}

// DBStatus reports the schema version of a SQLite metadata store.
func (a *VFMApp) DBStatus(ctx context.Context) (migrations.Status, error) {
	s, err := a.sqlite()
	if err != nil {
		return migrations.Status{}, err
	}
	return s.MigrationStatus(ctx)
}

// BackupDB writes a consistent copy of a SQLite metadata store to dest.
func (a *VFMApp) BackupDB(ctx context.Context, dest string) error {
	s, err := a.sqlite()
	if err != nil {
		return err
	}
	if err := s.BackupTo(ctx, dest); err != nil {
		return err
	}
	a.logger.Info("database backed up", "dest", dest)
	return nil
}

// Close logs how the operation ended and closes all resources.
func (a *VFMApp) Close() error {
	var firstErr error

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing metadata store: %w", err)
		}
	}

	if a.urls != nil && a.urls.Outstanding() > 0 {
		a.logger.Debug("object urls still outstanding", "count", a.urls.Outstanding())
	}

	a.logger.Info("operation finished",
		"operation", a.op.Name,
		"status", a.op.Status,
		"duration", a.clock.Now().Sub(a.op.Started).String())

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
