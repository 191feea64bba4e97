package db

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/adamavenir/frayfeed/internal/core"
	"github.com/adamavenir/frayfeed/internal/feed"
)

// Store is a durable feed.StateStore.
type Store interface {
	feed.StateStore
	io.Closer
}

type memoryStore struct {
	*feed.MemoryStore
}

func (memoryStore) Close() error { return nil }

// Open opens the state store selected by cfg. An empty path uses the default
// location for the driver.
func Open(cfg core.StoreConfig, limit int) (Store, error) {
	path := cfg.Path
	if path == "" && cfg.Driver != "memory" {
		var err error
		path, err = core.DefaultStorePath(cfg.Driver)
		if err != nil {
			return nil, err
		}
	}
	switch cfg.Driver {
	case "", "sqlite":
		s, err := OpenSQLite(path, limit)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "pebble":
		s, err := OpenPebble(path, limit)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return memoryStore{feed.NewMemoryStore(limit)}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenDatabase opens (creating if needed) the SQLite database at path.
func OpenDatabase(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := InitSchema(conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return conn, nil
}
