package core

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// DefaultMaxPageSize bounds a single result page when the config leaves
// MaxPageSize unset.
const DefaultMaxPageSize = 100

// Config holds store configuration.
type Config struct {
	Path        string // database file path
	MaxPageSize int    // page size ceiling for Query; 0 means DefaultMaxPageSize
	Logger      Logger // nil means NopLogger
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		MaxPageSize: DefaultMaxPageSize,
		Logger:      NopLogger(),
	}
}

// SQLiteStore persists catalog records and ingestion events in SQLite.
//
// All read operations are safe for unbounded concurrent use; ingestion is the
// sole writer and runs inside a single transaction per import call.
type SQLiteStore struct {
	db     *sql.DB
	config Config
	logger Logger
	mu     sync.RWMutex
	closed bool
}

// New creates a store for the database at path with default configuration.
func New(path string) (*SQLiteStore, error) {
	return NewWithConfig(DefaultConfig(path))
}

// NewWithConfig creates a store with custom configuration.
func NewWithConfig(config Config) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, wrapError("init", fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig))
	}
	if config.MaxPageSize < 0 {
		return nil, wrapError("init", fmt.Errorf("%w: max page size must be non-negative", ErrInvalidConfig))
	}
	if config.MaxPageSize == 0 {
		config.MaxPageSize = DefaultMaxPageSize
	}
	if config.Logger == nil {
		config.Logger = NopLogger()
	}

	return &SQLiteStore{
		config: config,
		logger: config.Logger,
	}, nil
}

// Init opens the SQLite database and creates the tables.
func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}

	// _journal_mode=WAL: readers are not blocked by the ingestion writer
	// _busy_timeout=5000: wait up to 5s for a lock instead of failing
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", s.config.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s.db = db

	if err := s.createTables(ctx); err != nil {
		return wrapError("init", err)
	}

	s.logger.Info("store initialized", "path", s.config.Path)
	return nil
}

// createTables creates the games and ingest_events tables.
func (s *SQLiteStore) createTables(ctx context.Context) error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS games (
		app_id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		release_date TEXT NOT NULL DEFAULT '1970-01-01',
		required_age INTEGER NOT NULL DEFAULT 0,
		price REAL,
		dlc_count INTEGER,
		about_game TEXT NOT NULL DEFAULT '',
		supported_languages TEXT NOT NULL DEFAULT '',
		windows INTEGER NOT NULL DEFAULT 0,
		mac INTEGER NOT NULL DEFAULT 0,
		linux INTEGER NOT NULL DEFAULT 0,
		positive INTEGER,
		negative INTEGER,
		score_rank INTEGER,
		developers TEXT NOT NULL DEFAULT '',
		publishers TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '',
		genres TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '',
		event_id TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_games_release_date ON games(release_date);
	CREATE INDEX IF NOT EXISTS idx_games_price ON games(price);

	CREATE TABLE IF NOT EXISTS ingest_events (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		accepted INTEGER NOT NULL,
		rejected INTEGER NOT NULL,
		rejections TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ingest_events_created_at ON ingest_events(created_at);
	`

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// MaxPageSize returns the configured page size ceiling.
func (s *SQLiteStore) MaxPageSize() int {
	return s.config.MaxPageSize
}

// Logger returns the store's logger.
func (s *SQLiteStore) Logger() Logger {
	return s.logger
}

// Close closes the database connection. The store cannot be reused after
// closing.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return wrapError("close", err)
		}
	}
	return nil
}
