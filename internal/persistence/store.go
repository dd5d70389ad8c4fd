package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aristath/siteplan/internal/scheduler"
)

// ErrProjectNotFound is returned when a project ID has no row.
var ErrProjectNotFound = errors.New("project not found")

// Project identifies a stored project.
type Project struct {
	ID   string
	Name string
}

// ProjectData is a complete project as imported or loaded.
type ProjectData struct {
	Project      Project
	Phases       []scheduler.Phase
	Tasks        []scheduler.Task
	Dependencies []scheduler.Dependency
}

// SQLiteStore is the host-side store for projects, phases, tasks and
// dependencies. The scheduling engine never touches it directly; a
// ProjectStore adapts it to scheduler.Store.
type SQLiteStore struct {
	db    *sql.DB
	retry RetryConfig
	cb    *breakers
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode, foreign keys, and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	// Create parent directories
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	// Note: modernc.org/sqlite doesn't support _foreign_keys in connection string
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	return open(ctx, connStr)
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Each store gets its own named database; the shared cache lets the pool's
// connections see the same data.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return open(ctx, connStr)
}

func open(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys via PRAGMA (required for modernc.org/sqlite)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// A single connection keeps the PRAGMA in effect and serializes writers
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:    db,
		retry: DefaultRetryConfig(),
		cb:    newBreakers(),
	}

	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// SetRetryConfig replaces the retry policy used for writes.
func (s *SQLiteStore) SetRetryConfig(cfg RetryConfig) {
	s.retry = cfg
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
