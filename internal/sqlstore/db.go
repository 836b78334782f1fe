// Package sqlstore is the SQLite-backed persistence for tiles, photos and
// settings, plus tile version history and share links.
package sqlstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const currentVersion = 2

const schemaV1 = `
CREATE TABLE IF NOT EXISTS tiles (
	id         TEXT PRIMARY KEY,
	slug       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	position   INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_tiles_slug ON tiles(slug);

CREATE TABLE IF NOT EXISTS photos (
	id       TEXT PRIMARY KEY,
	tile_id  TEXT NOT NULL,
	seq      INTEGER NOT NULL DEFAULT 0,
	data     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_photos_tile ON photos(tile_id);

CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tile_versions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tile_id    TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_versions_tile ON tile_versions(tile_id);
`

const schemaV2 = `
CREATE TABLE IF NOT EXISTS shared_links (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tile_id     TEXT NOT NULL,
	share_token TEXT NOT NULL UNIQUE,
	is_active   INTEGER NOT NULL DEFAULT 1,
	expires_at  DATETIME,
	created_at  DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shares_tile ON shared_links(tile_id);
`

// DB wraps a sql.DB with tiledash-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and migrates the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	var version int
	if err := db.conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}
	steps := []string{schemaV1, schemaV2}
	for v := version; v < currentVersion; v++ {
		if _, err := db.conn.Exec(steps[v]); err != nil {
			return fmt.Errorf("apply v%d: %w", v+1, err)
		}
	}
	_, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}
