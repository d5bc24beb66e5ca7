package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vfm-go/internal/database/migrations"
	"vfm-go/internal/model"
	"vfm-go/internal/vfm"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements vfm.MetadataStore on SQLite. Each collection is a
// table of JSON documents keyed by id, with expression indexes on the
// fields it is queried by.
type SQLiteStore struct {
	path   string
	clock  vfm.Clock
	logger vfm.Logger

	mu          sync.Mutex
	db          *sql.DB
	initialized bool
	unavailable bool

	users    *sqliteCollection[*model.User]
	files    *sqliteCollection[*model.File]
	folders  *sqliteCollection[*model.Folder]
	sessions *sqliteCollection[*model.Session]
	shares   *sqliteCollection[*model.Share]
}

var _ vfm.MetadataStore = (*SQLiteStore)(nil)

// NewSQLiteStore returns a store backed by the database file at path, or an
// in-memory database for ":memory:". Nothing is opened until Init.
func NewSQLiteStore(path string, clock vfm.Clock, logger vfm.Logger) *SQLiteStore {
	if clock == nil {
		clock = vfm.RealClock{}
	}
	if logger == nil {
		logger = vfm.NewNopLogger()
	}

	s := &SQLiteStore{path: path, clock: clock, logger: logger}
	s.users = newSQLiteCollection[*model.User](s, usersLayout)
	s.files = newSQLiteCollection[*model.File](s, filesLayout)
	s.folders = newSQLiteCollection[*model.Folder](s, foldersLayout)
	s.sessions = newSQLiteCollection[*model.Session](s, sessionsLayout)
	s.shares = newSQLiteCollection[*model.Share](s, sharesLayout)
	return s
}

// NewSQLiteStoreFromDB wraps an existing connection. The caller is
// responsible for configuring it; Init still applies migrations.
func NewSQLiteStoreFromDB(db *sql.DB, clock vfm.Clock, logger vfm.Logger) *SQLiteStore {
	s := NewSQLiteStore("", clock, logger)
	s.db = db
	return s
}

// OpenConnection opens and configures a SQLite database connection.
// This is exported for use in tools and tests that need a properly configured SQLite connection.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" gets its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

// Init opens the database and brings its schema up to date. If the file
// cannot be created or opened the store is marked unavailable and Init
// returns nil.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if s.db == nil {
		db, err := s.open(ctx)
		if err != nil {
			s.logger.Warn("metadata store unavailable", "path", describePath(s.path), "error", err)
			s.unavailable = true
			s.initialized = true
			return nil
		}
		s.db = db
	}

	if err := migrations.MigrateUp(s.db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	s.initialized = true
	s.logger.Debug("metadata store ready", "path", describePath(s.path))
	return nil
}

func (s *SQLiteStore) open(ctx context.Context) (*sql.DB, error) {
	if s.path == "" {
		return nil, fmt.Errorf("no database path")
	}
	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := OpenConnection(s.path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return db, nil
}

// conn returns the open connection, initializing the store on first use.
func (s *SQLiteStore) conn(ctx context.Context) (*sql.DB, error) {
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable || s.db == nil {
		return nil, vfm.ErrStorageUnavailable
	}
	return s.db, nil
}

// Available reports whether Init opened the database.
func (s *SQLiteStore) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized && !s.unavailable
}

func (s *SQLiteStore) Users() vfm.Collection[*model.User]       { return s.users }
func (s *SQLiteStore) Files() vfm.Collection[*model.File]       { return s.files }
func (s *SQLiteStore) Folders() vfm.Collection[*model.Folder]   { return s.folders }
func (s *SQLiteStore) Sessions() vfm.Collection[*model.Session] { return s.sessions }
func (s *SQLiteStore) Shares() vfm.Collection[*model.Share]     { return s.shares }

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations(ctx context.Context) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	return migrations.CheckDBMigrationStatus(db)
}

// MigrationStatus reports the schema version against the latest migration.
func (s *SQLiteStore) MigrationStatus(ctx context.Context) (migrations.Status, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return migrations.Status{}, err
	}
	return migrations.ReadStatus(db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(ctx context.Context, destPath string) error {
	db, err := s.conn(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.initialized = false
	return err
}

// describePath is used in log lines; in-memory databases have no path.
func describePath(path string) string {
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return "memory"
	}
	return path
}
