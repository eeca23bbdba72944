package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultPath = "data/crossarb.db"
)

// Store wraps a SQLite DB connection holding the latest cycle's output.
type Store struct {
	path string
	db   *sql.DB
}

// Open creates (if needed) and opens the SQLite database and its tables.
func Open(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; readers go through the same handle
	db.SetMaxOpenConns(1)
	if err := ensureWAL(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	s := &Store{path: path, db: db}
	if err := s.CreateTables(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func ensureWAL(db *sql.DB) error {
	const (
		maxAttempts = 5
		delay       = 200 * time.Millisecond
	)
	for i := 0; i < maxAttempts; i++ {
		if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			if strings.Contains(err.Error(), "database is locked") {
				time.Sleep(delay)
				continue
			}
			return err
		}
		return nil
	}
	return fmt.Errorf("database is locked after retries")
}

// Path returns the path backing the store.
func (s *Store) Path() string {
	return s.path
}

// Close closes the DB.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateTables ensures the snapshot tables exist.
func (s *Store) CreateTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

// DropTables removes the snapshot tables.
func (s *Store) DropTables(ctx context.Context) error {
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table+`;`); err != nil {
			return err
		}
	}
	return nil
}

// ClearTables empties the snapshot tables.
func (s *Store) ClearTables(ctx context.Context) error {
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM `+table+`;`); err != nil {
			return err
		}
	}
	return nil
}

var tables = []string{"snapshot_meta", "matched_pairs", "opportunities"}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshot_meta (
	snapshot_id TEXT PRIMARY KEY,
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	records_a INTEGER NOT NULL,
	records_b INTEGER NOT NULL,
	pair_count INTEGER NOT NULL,
	opportunity_count INTEGER NOT NULL,
	source_errors_json TEXT
);
CREATE TABLE IF NOT EXISTS matched_pairs (
	pair_id TEXT PRIMARY KEY,
	snapshot_id TEXT NOT NULL,
	method TEXT NOT NULL,
	score REAL NOT NULL,
	a_venue TEXT NOT NULL,
	a_source_id TEXT NOT NULL,
	a_canonical_id TEXT,
	a_title TEXT,
	a_key TEXT,
	b_venue TEXT NOT NULL,
	b_source_id TEXT NOT NULL,
	b_canonical_id TEXT,
	b_title TEXT,
	b_key TEXT
);
CREATE TABLE IF NOT EXISTS opportunities (
	pair_id TEXT NOT NULL,
	strategy TEXT NOT NULL,
	snapshot_id TEXT NOT NULL,
	rank INTEGER NOT NULL,
	outcome_a TEXT,
	outcome_b TEXT,
	price_a REAL NOT NULL,
	price_b REAL NOT NULL,
	unit_cost REAL NOT NULL,
	profit_fraction REAL NOT NULL,
	depth_a_usd REAL NOT NULL,
	depth_b_usd REAL NOT NULL,
	capacity_usd REAL NOT NULL,
	PRIMARY KEY (pair_id, strategy)
);
CREATE INDEX IF NOT EXISTS opportunities_rank_idx ON opportunities(rank);
`
