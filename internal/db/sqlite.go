package db

import (
	"database/sql"
	"time"

	"github.com/adamavenir/frayfeed/internal/types"
)

// SQLiteStore keeps feed state in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// OpenSQLite opens the store at path, keeping at most limit deleted ids.
func OpenSQLite(path string, limit int) (*SQLiteStore, error) {
	conn, err := OpenDatabase(path)
	if err != nil {
		return nil, err
	}
	return NewSQLiteStore(conn, limit), nil
}

// NewSQLiteStore wraps an already initialized connection.
func NewSQLiteStore(conn *sql.DB, limit int) *SQLiteStore {
	if limit <= 0 {
		limit = 200
	}
	return &SQLiteStore{db: conn, limit: limit, now: time.Now}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetReadStatus(messageID string, isThread bool) (types.ReadStatus, error) {
	var status string
	err := s.db.QueryRow(`
		SELECT status FROM feed_read_status WHERE message_id = ? AND is_thread = ?
	`, messageID, boolInt(isThread)).Scan(&status)
	if err == sql.ErrNoRows {
		return types.ReadStatusNone, nil
	}
	if err != nil {
		return types.ReadStatusNone, err
	}
	return types.ReadStatus(status), nil
}

func (s *SQLiteStore) SetReadStatus(messageID string, isThread bool, status types.ReadStatus) error {
	_, err := s.db.Exec(`
		INSERT INTO feed_read_status (message_id, is_thread, status, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(message_id, is_thread) DO UPDATE SET
		  status = excluded.status,
		  updated_at = excluded.updated_at
	`, messageID, boolInt(isThread), string(status), s.now().UnixMilli())
	return err
}

func (s *SQLiteStore) IncrementViewCount(messageID string, isThread bool) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(`
		INSERT INTO feed_read_status (message_id, is_thread, view_count, updated_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(message_id, is_thread) DO UPDATE SET
		  view_count = view_count + 1,
		  updated_at = excluded.updated_at
	`, messageID, boolInt(isThread), s.now().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	var count int
	if err := tx.QueryRow(`
		SELECT view_count FROM feed_read_status WHERE message_id = ? AND is_thread = ?
	`, messageID, boolInt(isThread)).Scan(&count); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return count, tx.Commit()
}

func (s *SQLiteStore) RecordDeleted(messageID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM feed_deleted`).Scan(&seq); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`
		INSERT INTO feed_deleted (message_id, seq, deleted_at)
		VALUES (?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
		  seq = excluded.seq,
		  deleted_at = excluded.deleted_at
	`, messageID, seq, s.now().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.Exec(`
		DELETE FROM feed_deleted WHERE message_id NOT IN (
		  SELECT message_id FROM feed_deleted ORDER BY seq DESC LIMIT ?
		)
	`, s.limit); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) RecentlyDeleted(limit int) ([]string, error) {
	if limit <= 0 {
		limit = s.limit
	}
	rows, err := s.db.Query(`
		SELECT message_id FROM feed_deleted ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
