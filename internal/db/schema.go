package db

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
-- Per-message read state, keyed by scope (main feed vs thread view)
CREATE TABLE IF NOT EXISTS feed_read_status (
  message_id TEXT NOT NULL,
  is_thread INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT '',      -- '', 'first_view', 'fully_read'
  view_count INTEGER NOT NULL DEFAULT 0,
  updated_at INTEGER NOT NULL,          -- unix ms
  PRIMARY KEY (message_id, is_thread)
);

-- Ids deleted locally or by push, newest seq first
CREATE TABLE IF NOT EXISTS feed_deleted (
  message_id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  deleted_at INTEGER NOT NULL           -- unix ms
);

CREATE INDEX IF NOT EXISTS idx_feed_deleted_seq ON feed_deleted(seq);

CREATE TABLE IF NOT EXISTS feed_meta (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`

const schemaVersion = "1"

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// InitSchema creates the state tables if needed.
func InitSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := initSchemaWith(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func initSchemaWith(db DBTX) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return err
	}
	var version string
	err := db.QueryRow(`SELECT value FROM feed_meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.Exec(`INSERT INTO feed_meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
		return err
	case err != nil:
		return err
	case version != schemaVersion:
		return fmt.Errorf("state schema version %s is not supported (want %s)", version, schemaVersion)
	}
	return nil
}

// SchemaExists reports whether the state schema is present.
func SchemaExists(db *sql.DB) (bool, error) {
	row := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name = 'feed_read_status'
	`)
	var name string
	if err := row.Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
