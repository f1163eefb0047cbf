// Package sqlite provides the SQLite implementation of the library store.
// It owns the persistent catalog: tracks, playlists, artists, albums, tags and history.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/tejashwikalptaru/tunelib/internal/domain"
	"github.com/tejashwikalptaru/tunelib/internal/ports"
)

// Store is the SQLite library store.
//
// Thread-safety: Store is safe for concurrent use. All access goes through a
// single pooled connection, so statements never interleave.
type Store struct {
	// Dependencies
	logger *slog.Logger
	db     *sql.DB

	// now stamps playlist and history writes; replaced in tests
	now func() time.Time
}

// dsnParams apply per connection; foreign_keys must be on for the cascades to fire.
const dsnParams = "_foreign_keys=on&_busy_timeout=5000"

// driverName is go-sqlite3 with the fold() SQL function registered on every connection.
const driverName = "sqlite3_tunelib"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", foldValue, true)
		},
	})
}

// foldValue lowercases text with full Unicode rules. SQLite's own LIKE only
// folds ASCII, so searches compare fold(column) against a folded pattern.
func foldValue(v any) string {
	switch v := v.(type) {
	case string:
		return strings.ToLower(v)
	case []byte:
		return strings.ToLower(string(v))
	default:
		return ""
	}
}

// Open opens (or creates) the database at path and ensures the schema exists.
// The caller must Close the store when finished.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path+"?"+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("failed to set pragma", slog.String("pragma", pragma), slog.Any("error", err))
		}
	}

	s := &Store{
		logger: logger,
		db:     db,
		now:    func() time.Time { return time.Now().UTC() },
	}

	if err := s.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("library store opened", slog.String("path", path))
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withTx runs fn inside a transaction, committing only if fn succeeds.
// fn must use tx exclusively: the pool holds a single connection.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// fail logs a storage failure and wraps it for the caller.
// Domain sentinels pass through untouched and unlogged.
func (s *Store) fail(op, entity string, err error) error {
	if isDomainError(err) {
		return err
	}
	s.logger.Error("store operation failed",
		slog.String("op", op),
		slog.String("entity", entity),
		slog.Any("error", err))
	return domain.NewStoreError(op, entity, err)
}

func isDomainError(err error) bool {
	var validation *domain.ValidationError
	return domain.IsNotFound(err) ||
		errors.Is(err, domain.ErrInvalidID) ||
		errors.Is(err, domain.ErrEmptyName) ||
		errors.As(err, &validation)
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// likeContains builds a LIKE pattern matching s as a literal substring.
// Use with ESCAPE '\'.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

// Verify that Store implements the LibraryStore interface
var _ ports.LibraryStore = (*Store)(nil)
