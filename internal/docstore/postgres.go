package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres keeps one table per collection, each row holding the document as
// JSONB under its key. Partial upserts use jsonb concatenation, which
// replaces top-level fields as a whole.
type Postgres[K comparable, T any] struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgres returns a collection backed by table, creating it if needed.
func NewPostgres[K comparable, T any](ctx context.Context, pool *pgxpool.Pool, table string) (*Postgres[K, T], error) {
	if !topLevelPattern.MatchString(table) {
		return nil, fmt.Errorf("docstore: invalid table name %q", table)
	}
	p := &Postgres[K, T]{pool: pool, table: table}
	_, err := pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
		   id  TEXT PRIMARY KEY,
		   doc JSONB NOT NULL
		 )`, table))
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return p, nil
}

func (p *Postgres[K, T]) FindOne(ctx context.Context, key K) (*T, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, p.table),
		keyString(key),
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, fmt.Errorf("%s findOne: %w", p.table, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%s decode: %w", p.table, err)
	}
	return &out, nil
}

func (p *Postgres[K, T]) Find(ctx context.Context, f Filter) ([]*T, error) {
	where, args, err := pgWhere(f, 1)
	if err != nil {
		return nil, err
	}
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT doc FROM %s %s`, p.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("%s find: %w", p.table, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%s scan: %w", p.table, err)
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%s decode: %w", p.table, err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

func (p *Postgres[K, T]) Upsert(ctx context.Context, key K, doc *T) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s encode: %w", p.table, err)
	}
	return p.upsert(ctx, key, raw)
}

func (p *Postgres[K, T]) Set(ctx context.Context, key K, fields Fields) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%s encode: %w", p.table, err)
	}
	return p.upsert(ctx, key, raw)
}

func (p *Postgres[K, T]) upsert(ctx context.Context, key K, raw []byte) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`INSERT INTO %[1]s (id, doc) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET doc = %[1]s.doc || EXCLUDED.doc`, p.table),
		keyString(key), string(raw),
	)
	if err != nil {
		return fmt.Errorf("%s upsert: %w", p.table, err)
	}
	return nil
}

func (p *Postgres[K, T]) UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error) {
	if err := validateFields(fields); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return 0, fmt.Errorf("%s encode: %w", p.table, err)
	}
	where, args, err := pgWhere(f, 2)
	if err != nil {
		return 0, err
	}
	tag, err := p.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET doc = doc || $1::jsonb %s`, p.table, where),
		append([]any{string(raw)}, args...)...,
	)
	if err != nil {
		return 0, fmt.Errorf("%s updateMany: %w", p.table, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres[K, T]) Delete(ctx context.Context, key K) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, p.table), keyString(key))
	if err != nil {
		return fmt.Errorf("%s delete: %w", p.table, err)
	}
	return nil
}

func (p *Postgres[K, T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	where, args, err := pgWhere(f, 1)
	if err != nil {
		return 0, err
	}
	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s %s`, p.table, where), args...)
	if err != nil {
		return 0, fmt.Errorf("%s deleteMany: %w", p.table, err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres[K, T]) Count(ctx context.Context, f Filter) (int64, error) {
	where, args, err := pgWhere(f, 1)
	if err != nil {
		return 0, err
	}
	var n int64
	err = p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s %s`, p.table, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", p.table, err)
	}
	return n, nil
}

// pgWhere renders f as a WHERE clause over the doc column. Placeholders are
// numbered from first.
func pgWhere(f Filter, first int) (string, []any, error) {
	if err := f.validate(); err != nil {
		return "", nil, err
	}
	if len(f) == 0 {
		return "", nil, nil
	}
	clauses := make([]string, 0, len(f))
	args := make([]any, 0, len(f))
	for i, c := range f {
		path := fmt.Sprintf("(doc #>> '{%s}')", strings.ReplaceAll(c.Field, ".", ","))
		placeholder := fmt.Sprintf("$%d", first+i)
		switch c.Value.(type) {
		case bool:
			path += "::boolean"
		case int, int32, int64, float64:
			path += "::numeric"
		case time.Time:
			path += "::timestamptz"
		}
		clauses = append(clauses, fmt.Sprintf("%s %s %s", path, c.Op, placeholder))
		args = append(args, c.Value)
	}
	return "WHERE " + strings.Join(clauses, " AND "), args, nil
}

func keyString(key any) string { return fmt.Sprint(key) }
