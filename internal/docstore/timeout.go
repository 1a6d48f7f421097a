package docstore

import (
	"context"
	"time"
)

type timeoutCollection[K comparable, T any] struct {
	next Collection[K, T]
	d    time.Duration
}

// WithTimeout bounds every call on c by d. A non-positive d returns c
// unchanged.
func WithTimeout[K comparable, T any](c Collection[K, T], d time.Duration) Collection[K, T] {
	if d <= 0 {
		return c
	}
	return &timeoutCollection[K, T]{next: c, d: d}
}

func (c *timeoutCollection[K, T]) FindOne(ctx context.Context, key K) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.FindOne(ctx, key)
}

func (c *timeoutCollection[K, T]) Find(ctx context.Context, f Filter) ([]*T, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Find(ctx, f)
}

func (c *timeoutCollection[K, T]) Upsert(ctx context.Context, key K, doc *T) error {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Upsert(ctx, key, doc)
}

func (c *timeoutCollection[K, T]) Set(ctx context.Context, key K, fields Fields) error {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Set(ctx, key, fields)
}

func (c *timeoutCollection[K, T]) UpdateMany(ctx context.Context, f Filter, fields Fields) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.UpdateMany(ctx, f, fields)
}

func (c *timeoutCollection[K, T]) Delete(ctx context.Context, key K) error {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Delete(ctx, key)
}

func (c *timeoutCollection[K, T]) DeleteMany(ctx context.Context, f Filter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.DeleteMany(ctx, f)
}

func (c *timeoutCollection[K, T]) Count(ctx context.Context, f Filter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.d)
	defer cancel()
	return c.next.Count(ctx, f)
}
