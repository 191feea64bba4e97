package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func requireSchema(t *testing.T, db *sql.DB) {
	t.Helper()
	if err := InitSchema(db); err != nil {
		t.Fatalf("init schema: %v", err)
	}
}

// eachStore runs fn against every durable driver.
func eachStore(t *testing.T, limit int, fn func(t *testing.T, s Store)) {
	t.Helper()
	drivers := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{"sqlite", func(t *testing.T) Store {
			db := openTestDB(t)
			requireSchema(t, db)
			return NewSQLiteStore(db, limit)
		}},
		{"pebble", func(t *testing.T) Store {
			s, err := OpenPebble(filepath.Join(t.TempDir(), "state.pebble"), limit)
			if err != nil {
				t.Fatalf("open pebble: %v", err)
			}
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
	for _, d := range drivers {
		t.Run(d.name, func(t *testing.T) {
			fn(t, d.open(t))
		})
	}
}
