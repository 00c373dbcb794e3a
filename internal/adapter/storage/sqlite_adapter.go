package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

//go:embed schema_sqlite.sql
var sqliteSchema string

var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// OpenSQLite opens the embedded store at path and applies the schema. SQLite
// takes one writer at a time, so the pool holds a single connection.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if path == "" {
		path = "goods-issue.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := applySchema(ctx, db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}

	return NewSQLStore(db), nil
}
