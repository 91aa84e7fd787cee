package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/julianstephens/dayjot/internal/logger"
	"github.com/julianstephens/dayjot/internal/migration"
	"github.com/julianstephens/dayjot/internal/storage/sqlbase"
	"github.com/julianstephens/dayjot/migrations"
)

const busyTimeoutMs = 5000

type Store struct {
	sqlbase.Base
	path string
}

func NewStore(path string) *Store {
	return &Store{
		Base: sqlbase.NewBase(sqlbase.Dialect{Name: "sqlite", IsTransient: IsTransient}),
		path: path,
	}
}

func (s *Store) Init() error {
	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	s.SetDB(db)

	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Load() error {
	if s.GetDB() != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'dayjot init' first")
	}

	db, err := s.open()
	if err != nil {
		return err
	}
	s.SetDB(db)

	// Validate schema version using embedded migrations
	return s.validateSchemaVersion()
}

func (s *Store) Close() error {
	if db := s.GetDB(); db != nil {
		s.SetDB(nil)
		return db.Close()
	}
	return nil
}

func (s *Store) GetConfigPath() string {
	return s.path
}

// Migrate applies pending migrations, opening the database without the
// schema version check that Load performs.
func (s *Store) Migrate(logFn func(string)) (int, error) {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return 0, fmt.Errorf("storage not initialized, run 'dayjot init' first")
	}
	if s.GetDB() == nil {
		db, err := s.open()
		if err != nil {
			return 0, err
		}
		s.SetDB(db)
	}
	runner, err := s.runner()
	if err != nil {
		return 0, err
	}
	return runner.ApplyMigrations(logFn)
}

func (s *Store) open() (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", s.path, busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway; one connection keeps transactions
	// from failing with SQLITE_BUSY on lock upgrade.
	db.SetMaxOpenConns(1)
	return db, nil
}

func (s *Store) runner() (*migration.Runner, error) {
	subFS, err := fs.Sub(migrations.FS, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to access sqlite migrations: %w", err)
	}
	return migration.NewRunner(s.GetDB(), subFS), nil
}

func (s *Store) runMigrations() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	_, err = runner.ApplyMigrations(func(msg string) {
		logger.Info(msg)
	})
	return err
}

func (s *Store) validateSchemaVersion() error {
	runner, err := s.runner()
	if err != nil {
		return err
	}
	return runner.ValidateVersion()
}

// IsTransient reports whether err is a lock contention error worth retrying.
func IsTransient(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
