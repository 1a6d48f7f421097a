package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// document is the JSON form of a record, shared by the backends that keep
// documents as JSON text (memory, SQLite).
type document map[string]any

func toDocument(v any) (document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var d document
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("normalise document: %w", err)
	}
	return d, nil
}

func fromDocument[T any](d document) (*T, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &out, nil
}

// merge applies "set" semantics: each top-level field replaces the stored
// one as a whole.
func (d document) merge(fields document) {
	for k, v := range fields {
		d[k] = v
	}
}

func (d document) lookup(path string) (any, bool) {
	var cur any = map[string]any(d)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func (d document) matches(f Filter) bool {
	for _, c := range f {
		v, ok := d.lookup(c.Field)
		if !ok {
			return false
		}
		cmp, ok := compare(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpEq:
			if cmp != 0 {
				return false
			}
		case OpLt:
			if cmp >= 0 {
				return false
			}
		}
	}
	return true
}

// compare orders a JSON-decoded document value against a filter value.
// The second result is false when the two cannot be compared.
func compare(docValue, want any) (int, bool) {
	switch w := want.(type) {
	case time.Time:
		s, ok := docValue.(string)
		if !ok {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.Compare(w), true
	case bool:
		b, ok := docValue.(bool)
		if !ok {
			return 0, false
		}
		if b == w {
			return 0, true
		}
		if !b {
			return -1, true
		}
		return 1, true
	case string:
		s, ok := docValue.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, w), true
	}
	n, ok := docValue.(float64)
	if !ok {
		return 0, false
	}
	var f float64
	switch w := want.(type) {
	case int:
		f = float64(w)
	case int32:
		f = float64(w)
	case int64:
		f = float64(w)
	case float64:
		f = w
	default:
		return 0, false
	}
	switch {
	case n < f:
		return -1, true
	case n > f:
		return 1, true
	}
	return 0, true
}
