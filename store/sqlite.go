package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite persists one named blob in a local SQLite database.
type SQLite struct {
	db   *sql.DB
	name string
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// binds the store to the blob named name.
func OpenSQLite(ctx context.Context, path, name string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if name == "" {
		return nil, fmt.Errorf("blob name is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(pctx, `CREATE TABLE IF NOT EXISTS blob_store (
  name       TEXT PRIMARY KEY,
  data       BLOB NOT NULL,
  updated_at TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create blob_store: %w", err)
	}

	return &SQLite{db: db, name: name}, nil
}

func (c *SQLite) Load(ctx context.Context) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT data FROM blob_store WHERE name = ?", c.name,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %q: %w", c.name, err)
	}
	return blob, nil
}

func (c *SQLite) Save(ctx context.Context, blob []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO blob_store (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		c.name, blob, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save blob %q: %w", c.name, err)
	}
	return nil
}

func (c *SQLite) Close() error {
	return c.db.Close()
}
