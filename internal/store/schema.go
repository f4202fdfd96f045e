// Package store persists the graph in SQLite: node rows keyed by UUID with
// a unique path column, edge rows keyed by the ordered (source, target)
// pair, and typed attribute rows hanging off both. Deleting a node cascades
// through its edges and attributes via foreign keys.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS nodes (
	uuid          TEXT PRIMARY KEY,
	path          TEXT NOT NULL UNIQUE,
	ntype         TEXT NOT NULL,
	created_time  INTEGER NOT NULL,
	modified_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS node_attrs (
	node_uuid TEXT NOT NULL REFERENCES nodes(uuid) ON DELETE CASCADE,
	name      TEXT NOT NULL,
	kind      TEXT NOT NULL,
	str_val   TEXT,
	num_val   REAL,
	int_val   INTEGER,
	blob_val  BLOB,
	PRIMARY KEY (node_uuid, name)
);

CREATE TABLE IF NOT EXISTS edges (
	source        TEXT NOT NULL REFERENCES nodes(uuid) ON DELETE CASCADE,
	target        TEXT NOT NULL REFERENCES nodes(uuid) ON DELETE CASCADE,
	etype         TEXT NOT NULL,
	created_time  INTEGER NOT NULL,
	modified_time INTEGER NOT NULL,
	PRIMARY KEY (source, target)
);

CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

CREATE TABLE IF NOT EXISTS edge_attrs (
	source   TEXT NOT NULL,
	target   TEXT NOT NULL,
	name     TEXT NOT NULL,
	kind     TEXT NOT NULL,
	str_val  TEXT,
	num_val  REAL,
	int_val  INTEGER,
	blob_val BLOB,
	PRIMARY KEY (source, target, name),
	FOREIGN KEY (source, target) REFERENCES edges(source, target)
		ON DELETE CASCADE ON UPDATE CASCADE
);
`

// DB wraps a sql.DB with graph-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
