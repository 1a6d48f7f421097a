package docstore

import (
	"context"
	"sync"
	"sync/atomic"
)

// Memory is an in-process Collection. Documents are kept in their JSON form
// so filters and partial updates behave like the database backends.
type Memory[K comparable, T any] struct {
	mu   sync.Mutex
	docs map[K]document

	reads  atomic.Int64
	writes atomic.Int64
}

// NewMemory returns an empty in-memory collection.
func NewMemory[K comparable, T any]() *Memory[K, T] {
	return &Memory[K, T]{docs: make(map[K]document)}
}

// Reads returns the number of FindOne and Find calls served so far.
func (m *Memory[K, T]) Reads() int64 { return m.reads.Load() }

// Writes returns the number of write calls served so far.
func (m *Memory[K, T]) Writes() int64 { return m.writes.Load() }

// Len returns the number of stored documents.
func (m *Memory[K, T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *Memory[K, T]) FindOne(ctx context.Context, key K) (*T, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[key]
	if !ok {
		return nil, ErrNoDocument
	}
	return fromDocument[T](d)
}

func (m *Memory[K, T]) Find(ctx context.Context, f Filter) ([]*T, error) {
	m.reads.Add(1)
	if err := f.validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*T
	for _, d := range m.docs {
		if !d.matches(f) {
			continue
		}
		v, err := fromDocument[T](d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory[K, T]) Upsert(ctx context.Context, key K, doc *T) error {
	d, err := toDocument(doc)
	if err != nil {
		return err
	}
	return m.set(ctx, key, d)
}

func (m *Memory[K, T]) Set(ctx context.Context, key K, fields Fields) error {
	if err := validateFields(fields); err != nil {
		return err
	}
	d, err := toDocument(fields)
	if err != nil {
		return err
	}
	return m.set(ctx, key, d)
}

func (m *Memory[K, T]) set(ctx context.Context, key K, fields document) error {
	m.writes.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[key]
	if !ok {
		d = document{}
		m.docs[key] = d
	}
	d.merge(fields)
	return nil
}

func (m *Memory[K, T]) UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error) {
	m.writes.Add(1)
	if err := f.validate(); err != nil {
		return 0, err
	}
	if err := validateFields(fields); err != nil {
		return 0, err
	}
	patch, err := toDocument(fields)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.docs {
		if d.matches(f) {
			d.merge(patch)
			n++
		}
	}
	return n, nil
}

func (m *Memory[K, T]) Delete(ctx context.Context, key K) error {
	m.writes.Add(1)
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func (m *Memory[K, T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	m.writes.Add(1)
	if err := f.validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, d := range m.docs {
		if d.matches(f) {
			delete(m.docs, k)
			n++
		}
	}
	return n, nil
}

func (m *Memory[K, T]) Count(ctx context.Context, f Filter) (int64, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, d := range m.docs {
		if d.matches(f) {
			n++
		}
	}
	return n, nil
}
