package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens the database file at path in WAL mode.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := conn.ExecContext(ctx, `PRAGMA journal_mode=WAL;`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sqlite pragma: %w", err)
	}
	// One writer at a time; merges run read-modify-write in a transaction.
	conn.SetMaxOpenConns(1)
	return conn, nil
}
