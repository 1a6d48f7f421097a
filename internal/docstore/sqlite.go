package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLite keeps each collection in a table of JSON text documents. Filters
// run through the JSON1 functions; partial writes are merged in a
// transaction so top-level fields are replaced whole, as in the other
// backends.
type SQLite[K comparable, T any] struct {
	db    *sql.DB
	table string
}

// NewSQLite returns a collection backed by table, creating it if needed.
// The caller registers the driver (github.com/mattn/go-sqlite3).
func NewSQLite[K comparable, T any](ctx context.Context, db *sql.DB, table string) (*SQLite[K, T], error) {
	if !topLevelPattern.MatchString(table) {
		return nil, fmt.Errorf("docstore: invalid table name %q", table)
	}
	_, err := db.ExecContext(ctx, fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
  id  TEXT PRIMARY KEY,
  doc TEXT NOT NULL
);`, table))
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &SQLite[K, T]{db: db, table: table}, nil
}

func (s *SQLite[K, T]) FindOne(ctx context.Context, key K) (*T, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, s.table), keyString(key),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("%s findOne: %w", s.table, err)
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", s.table, err)
	}
	return &out, nil
}

func (s *SQLite[K, T]) Find(ctx context.Context, f Filter) ([]*T, error) {
	where, args, err := sqliteWhere(f)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT doc FROM %s %s`, s.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("%s find: %w", s.table, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s scan: %w", s.table, err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("%s decode: %w", s.table, err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (s *SQLite[K, T]) Upsert(ctx context.Context, key K, doc *T) error {
	d, err := toDocument(doc)
	if err != nil {
		return err
	}
	return s.merge(ctx, keyString(key), d)
}

func (s *SQLite[K, T]) Set(ctx context.Context, key K, fields Fields) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	d, err := toDocument(fields)
	if err != nil {
		return err
	}
	return s.merge(ctx, keyString(key), d)
}

func (s *SQLite[K, T]) merge(ctx context.Context, id string, patch document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s begin: %w", s.table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	current := document{}
	var raw string
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT doc FROM %s WHERE id = ?`, s.table), id).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("%s load: %w", s.table, err)
	default:
		if err := json.Unmarshal([]byte(raw), &current); err != nil {
			return fmt.Errorf("%s decode: %w", s.table, err)
		}
	}
	current.merge(patch)
	if err := s.write(ctx, tx, id, current); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite[K, T]) write(ctx context.Context, tx *sql.Tx, id string, d document) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%s encode: %w", s.table, err)
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, doc) VALUES (?, ?)
		 ON CONFLICT(id) DO UPDATE SET doc = excluded.doc`, s.table),
		id, string(b),
	)
	if err != nil {
		return fmt.Errorf("%s write: %w", s.table, err)
	}
	return nil
}

func (s *SQLite[K, T]) UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error) {
	if err := validateFields(fields); err != nil {
		return 0, err
	}
	patch, err := toDocument(fields)
	if err != nil {
		return 0, err
	}
	where, args, err := sqliteWhere(f)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%s begin: %w", s.table, err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT id, doc FROM %s %s`, s.table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("%s updateMany: %w", s.table, err)
	}
	matched := map[string]document{}
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%s scan: %w", s.table, err)
		}
		d := document{}
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			rows.Close()
			return 0, fmt.Errorf("%s decode: %w", s.table, err)
		}
		matched[id] = d
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("%s updateMany: %w", s.table, err)
	}

	for id, d := range matched {
		d.merge(patch)
		if err := s.write(ctx, tx, id, d); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%s commit: %w", s.table, err)
	}
	return int64(len(matched)), nil
}

func (s *SQLite[K, T]) Delete(ctx context.Context, key K) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), keyString(key))
	if err != nil {
		return fmt.Errorf("%s delete: %w", s.table, err)
	}
	return nil
}

func (s *SQLite[K, T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	where, args, err := sqliteWhere(f)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s %s`, s.table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("%s deleteMany: %w", s.table, err)
	}
	return res.RowsAffected()
}

func (s *SQLite[K, T]) Count(ctx context.Context, f Filter) (int64, error) {
	where, args, err := sqliteWhere(f)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, s.table, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", s.table, err)
	}
	return n, nil
}

// sqliteWhere renders f with json_extract. JSON booleans come back as 1/0
// and timestamps are compared through julianday.
func sqliteWhere(f Filter) (string, []any, error) {
	if err := f.validate(); err != nil {
		return "", nil, err
	}
	if len(f) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	for _, c := range f {
		expr := fmt.Sprintf("json_extract(doc, '$.%s')", c.Field)
		arg := c.Value
		switch v := c.Value.(type) {
		case bool:
			if v {
				arg = 1
			} else {
				arg = 0
			}
		case time.Time:
			expr = "julianday(" + expr + ")"
			clauses = append(clauses, fmt.Sprintf("%s %s julianday(?)", expr, c.Op))
			args = append(args, v.UTC().Format(time.RFC3339Nano))
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s %s ?", expr, c.Op))
		args = append(args, arg)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}
