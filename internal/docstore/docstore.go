// Package docstore is the persistent document store behind the cache-backed
// stores. Each logical collection (offers, users, finders) maps one key to
// one document and supports point lookups, filtered finds, partial-field
// upserts with "set" semantics, deletes and counts.
//
// Backends: MongoDB, PostgreSQL (JSONB), SQLite (JSON1) and an in-memory
// implementation used in tests.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// ErrNoDocument is returned by FindOne when no document has the key.
var ErrNoDocument = errors.New("docstore: no document")

// Fields is a set of top-level fields merged into a document. Fields not
// named are left untouched.
type Fields map[string]any

// Op is a comparison operator used in a filter condition.
type Op int

const (
	OpEq Op = iota
	OpLt
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "="
	case OpLt:
		return "<"
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Cond compares one document field to a value. Field uses the document's
// field names; nested fields are dotted ("preferences.notifications").
// Values may be bool, string, integers, floats or time.Time.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) Cond { return Cond{Field: field, Op: OpEq, Value: v} }

// Lt matches documents whose field is strictly less than v.
func Lt(field string, v any) Cond { return Cond{Field: field, Op: OpLt, Value: v} }

// Filter is a conjunction of conditions. The empty filter matches every
// document.
type Filter []Cond

// Where builds a Filter.
func Where(conds ...Cond) Filter { return Filter(conds) }

// Collection is one logical collection of documents of type T keyed by K.
type Collection[K comparable, T any] interface {
	// FindOne returns the document stored under key or ErrNoDocument.
	FindOne(ctx context.Context, key K) (*T, error)
	// Find returns every document matching f.
	Find(ctx context.Context, f Filter) ([]*T, error)
	// Upsert merges every top-level field of doc into the document stored
	// under key, creating it if needed.
	Upsert(ctx context.Context, key K, doc *T) error
	// Set merges fields into the document stored under key, creating it if
	// needed.
	Set(ctx context.Context, key K, fields Fields) error
	// UpdateMany merges fields into every document matching f and returns
	// the number of documents changed.
	UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error)
	// Delete removes the document stored under key. Deleting a missing
	// document is not an error.
	Delete(ctx context.Context, key K) error
	// DeleteMany removes every document matching f.
	DeleteMany(ctx context.Context, f Filter) (int64, error)
	// Count returns the number of documents matching f.
	Count(ctx context.Context, f Filter) (int64, error)
}

var (
	fieldPattern    = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)*$`)
	topLevelPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// validate rejects field names that cannot be embedded in a SQL path and
// values no backend knows how to compare.
func (f Filter) validate() error {
	for _, c := range f {
		if !fieldPattern.MatchString(c.Field) {
			return fmt.Errorf("docstore: invalid field name %q", c.Field)
		}
		switch c.Value.(type) {
		case bool, string, int, int32, int64, float64, time.Time:
		default:
			return fmt.Errorf("docstore: unsupported value %T for field %s", c.Value, c.Field)
		}
	}
	return nil
}

func validateFields(fields Fields) error {
	for name := range fields {
		if !topLevelPattern.MatchString(name) {
			return fmt.Errorf("docstore: invalid field name %q", name)
		}
	}
	return nil
}
