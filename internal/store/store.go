package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrClosed       = errors.New("store closed")
)

// Options configures Open.
type Options struct {
	Driver string // DriverSQLite (default) or DriverPostgres
	DSN    string // file path for sqlite, connection string for postgres
	// WatchFile enables fsnotify on the sqlite database so that writes from
	// other processes reach Watch subscribers.
	WatchFile bool
	Logger    *zerolog.Logger
}

// Store is the backing record store. Every row belongs to exactly one owner
// partition and every query is scoped by owner.
type Store struct {
	db      *sql.DB
	dialect dialect
	log     zerolog.Logger
	notify  *notifier

	watcher  *fsnotify.Watcher
	listener *pq.Listener

	closeOnce sync.Once
	done      chan struct{}
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	return Open(Options{Driver: DriverSQLite, DSN: dbPath})
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func Open(opts Options) (*Store, error) {
	driver := strings.TrimSpace(opts.Driver)
	if driver == "" {
		driver = DriverSQLite
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "store").Logger()
	}

	var (
		s   *Store
		err error
	)
	switch driver {
	case DriverSQLite:
		s, err = openSQLite(opts.DSN)
	case DriverPostgres:
		s, err = openPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q: %w", driver, ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	s.log = log
	s.notify = newNotifier()
	s.done = make(chan struct{})

	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	switch {
	case driver == DriverPostgres:
		if err := s.listen(opts.DSN); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("listen: %w", err)
		}
	case opts.WatchFile && opts.DSN != ":memory:":
		if err := s.watchFile(opts.DSN); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("watch database file: %w", err)
		}
	}
	return s, nil
}

func openSQLite(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Configure pragmas.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}
	return &Store{db: db, dialect: sqliteDialect}, nil
}

func openPostgres(dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required: %w", ErrInvalidInput)
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{db: db, dialect: postgresDialect}, nil
}

func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		if s.watcher != nil {
			s.watcher.Close()
		}
		if s.listener != nil {
			s.listener.Close()
		}
		s.notify.close()
		err = s.db.Close()
	})
	return err
}

func (s *Store) migrate() error {
	if s.dialect.driver == DriverPostgres {
		_, err := s.db.Exec(schemaV1)
		return err
	}

	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// The schema avoids driver-specific defaults so the same DDL runs on sqlite
// and postgres. Timestamps are RFC 3339 text in UTC.
const schemaV1 = `
	CREATE TABLE IF NOT EXISTS projects (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		category    TEXT NOT NULL DEFAULT 'Personal',
		status      TEXT NOT NULL DEFAULT 'In Progress',
		progress    INTEGER NOT NULL DEFAULT 0,
		deadline    TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner_id);

	CREATE TABLE IF NOT EXISTS tasks (
		id           TEXT PRIMARY KEY,
		owner_id     TEXT NOT NULL,
		project_id   TEXT NOT NULL DEFAULT '',
		title        TEXT NOT NULL,
		due_date     TEXT NOT NULL DEFAULT '',
		priority     TEXT NOT NULL DEFAULT 'Medium',
		completed    INTEGER NOT NULL DEFAULT 0,
		completed_at TEXT,
		created_at   TEXT NOT NULL,
		updated_at   TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_owner_project ON tasks(owner_id, project_id);

	CREATE TABLE IF NOT EXISTS habits (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		name        TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_habits_owner ON habits(owner_id);

	CREATE TABLE IF NOT EXISTS habit_entries (
		id          TEXT PRIMARY KEY,
		owner_id    TEXT NOT NULL,
		habit_id    TEXT NOT NULL,
		day         TEXT NOT NULL,
		completed   INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_owner_habit ON habit_entries(owner_id, habit_id);

	CREATE TABLE IF NOT EXISTS settings (
		owner_id TEXT NOT NULL,
		key      TEXT NOT NULL,
		value    TEXT NOT NULL,
		PRIMARY KEY (owner_id, key)
	);
	`

// DefaultDBPath returns ~/.config/prodhub/prodhub.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "prodhub", "prodhub.db"), nil
}
