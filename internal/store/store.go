package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// currentSchemaVersion is bumped whenever schemaDDL changes shape. Open
// compares it against the schema_migrations row and forces a rebuild on
// mismatch (spec §6 "a version mismatch at open triggers a rebuild").
const currentSchemaVersion = 1

// Store is the single-writer, multi-reader SQLite layer behind the Graph
// Query Engine and the Extractor/Resolver (spec §4.C).
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a SQLite database at dbPath with WAL
// journaling, foreign keys enabled, and a busy timeout so contending writers
// block briefly before returning SQLITE_BUSY (surfaced as StoreBusy, §7).
func Open(dbPath string, busyTimeout time.Duration) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=%d",
		dbPath, busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by transactions and ad-hoc
// queries elsewhere in the package.
func (s *Store) DB() *sql.DB {
	return s.db
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
  id            INTEGER PRIMARY KEY,
  path          TEXT NOT NULL UNIQUE,
  language      TEXT NOT NULL,
  content_hash  TEXT NOT NULL,
  last_indexed  TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
  id            INTEGER PRIMARY KEY,
  kind          TEXT NOT NULL,
  name          TEXT NOT NULL,
  file_id       INTEGER NOT NULL REFERENCES files(id),
  start_line    INTEGER NOT NULL,
  end_line      INTEGER NOT NULL,
  language      TEXT NOT NULL,
  visibility    TEXT NOT NULL DEFAULT 'unknown',
  signature     TEXT,
  docstring     TEXT,
  parent_id     INTEGER REFERENCES nodes(id)
);

CREATE TABLE IF NOT EXISTS edges (
  id            INTEGER PRIMARY KEY,
  kind          TEXT NOT NULL,
  source_id     INTEGER NOT NULL REFERENCES nodes(id),
  target_id     INTEGER NOT NULL REFERENCES nodes(id),
  file_id       INTEGER REFERENCES files(id),
  line          INTEGER
);

CREATE TABLE IF NOT EXISTS unresolved_references (
  id              INTEGER PRIMARY KEY,
  source_node_id  INTEGER NOT NULL REFERENCES nodes(id),
  reference_name  TEXT NOT NULL,
  reference_kind  TEXT NOT NULL,
  file_id         INTEGER NOT NULL REFERENCES files(id),
  line            INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_files_path ON files(path);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_id);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_edges_identity ON edges(source_id, target_id, kind);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_id);
CREATE INDEX IF NOT EXISTS idx_edges_kind ON edges(kind);
CREATE INDEX IF NOT EXISTS idx_unresolved_name ON unresolved_references(reference_name);
CREATE INDEX IF NOT EXISTS idx_unresolved_source ON unresolved_references(source_node_id);
`

// migrate creates the schema if absent, or rebuilds it if the stored schema
// version doesn't match currentSchemaVersion (spec §6 schema_version row).
func (s *Store) migrate() error {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&count)
	if err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}

	if count > 0 {
		var version int
		if err := s.db.QueryRow("SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err == nil {
			if version != currentSchemaVersion {
				if err := s.rebuild(); err != nil {
					return fmt.Errorf("store: rebuild on version mismatch: %w", err)
				}
			}
			return nil
		}
	}

	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("store: seed schema version: %w", err)
	}
	return nil
}

// rebuild drops every table and recreates the schema from scratch. Used on
// a schema_version mismatch and by Rebuild. (The CLI's `index --force`
// deletes the database file instead.)
func (s *Store) rebuild() error {
	for _, table := range []string{"unresolved_references", "edges", "nodes", "files", "schema_migrations"} {
		if _, err := s.db.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("recreate schema: %w", err)
	}
	_, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", currentSchemaVersion)
	return err
}

// Rebuild forces a full schema rebuild, used when StoreCorrupt is detected
// (spec §7 "fatal; force a rebuild of index.db").
func (s *Store) Rebuild() error {
	return s.rebuild()
}
