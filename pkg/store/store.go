package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Options configures the SQLite-backed store.
type Options struct {
	// Path is the database file path. Parent directories are created
	// on open.
	Path string

	// AdminToken seeds the built-in administrator's auth token. The
	// seed runs only when the administrator row does not exist yet.
	AdminToken string

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// Store is the SQLite-backed persistence layer. All access is
// serialized through a single connection guarded by a mutex.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *slog.Logger
}

// AdminUserID is the reserved row id of the built-in administrator.
const AdminUserID = 0

const defaultBusyTimeout = 5 * time.Second

// Open opens (creating if necessary) the database at opts.Path,
// applies pragmas, creates the schema, and seeds the administrator.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("store: database path is required")
	}
	if opts.AdminToken == "" {
		return nil, fmt.Errorf("store: admin token is required")
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = defaultBusyTimeout
	}

	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create database directory: %w", err)
		}
	}

	logger := slog.Default().With("component", "store")

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	// One connection, one writer. SQLite serializes writers anyway;
	// pinning the pool to a single connection makes pragma state and
	// transaction scope unambiguous.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger}
	if err := s.initialize(opts); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store initialized", "path", opts.Path)
	return s, nil
}

func (s *Store) initialize(opts Options) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		fmt.Sprintf("PRAGMA busy_timeout=%d;", opts.BusyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}

	if err := s.seedAdmin(opts.AdminToken); err != nil {
		return fmt.Errorf("store: seed administrator: %w", err)
	}
	return nil
}

// seedAdmin inserts the built-in administrator row exactly once. On
// later opens the row already exists and the configured token replaces
// any stale one, so rotating the token in configuration takes effect
// on restart.
func (s *Store) seedAdmin(token string) error {
	var exists int
	err := s.db.QueryRow("SELECT COUNT(*) FROM users WHERE id = ?", AdminUserID).Scan(&exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		_, err = s.db.Exec(`
			INSERT INTO users (id, external_id, username, display_name, trust_level, created_at, ban_count, auth_token)
			VALUES (?, ?, 'admin', 'Administrator', 4, ?, 0, ?)`,
			AdminUserID, AdminUserID, now(), token)
		return err
	}
	_, err = s.db.Exec("UPDATE users SET auth_token = ? WHERE id = ?", token, AdminUserID)
	return err
}

// Close releases the underlying database connection. The daily
// reclamation checkpoint keeps the WAL bounded between restarts, so a
// final checkpoint here is best-effort only.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE);")
	return s.db.Close()
}

// now returns the current instant normalized for storage: UTC,
// truncated to whole seconds so driver-formatted timestamps compare
// lexicographically inside SQL.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// normalize converts any caller-supplied instant to storage form.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
