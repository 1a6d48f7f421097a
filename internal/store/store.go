// Package store puts a read-through cache with a sliding TTL in front of the
// document collections. Offers, users and finders each get a Store plus a
// few kind-specific queries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// DefaultCacheTTL is how long an untouched cache entry stays valid.
const DefaultCacheTTL = 600 * time.Second

type entry[T any] struct {
	rec        *T
	lastAccess time.Time
}

// Store is a cache-backed view of one collection. Records handed out are
// copies; callers mutate them freely and persist with Save.
type Store[K comparable, T any] struct {
	name     string
	coll     docstore.Collection[K, T]
	ttl      time.Duration
	now      func() time.Time
	validate func(*T) error
	isActive func(*T) bool
	logger   *slog.Logger

	mu    sync.Mutex
	cache map[K]*entry[T]
	// gen is bumped by every write. A cache miss only populates the entry
	// when no write happened while it was reading the collection.
	gen uint64
}

// Option configures a Store.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL overrides DefaultCacheTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultCacheTTL, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func newStore[K comparable, T any](
	name string,
	coll docstore.Collection[K, T],
	validate func(*T) error,
	isActive func(*T) bool,
	o options,
) *Store[K, T] {
	return &Store[K, T]{
		name:     name,
		coll:     coll,
		ttl:      o.ttl,
		now:      o.now,
		validate: validate,
		isActive: isActive,
		logger:   slog.With("component", name+"_store"),
		cache:    make(map[K]*entry[T]),
	}
}

// Get returns the active record stored under key. Missing and inactive
// records both yield model.ErrNotFound.
func (s *Store[K, T]) Get(ctx context.Context, key K) (*T, error) {
	rec, err := s.GetAny(ctx, key)
	if err != nil {
		return nil, err
	}
	if !s.isActive(rec) {
		return nil, model.ErrNotFound
	}
	return rec, nil
}

// GetAny is Get without the activity check.
func (s *Store[K, T]) GetAny(ctx context.Context, key K) (*T, error) {
	now := s.now()

	s.mu.Lock()
	if e, ok := s.cache[key]; ok {
		if now.Sub(e.lastAccess) < s.ttl {
			e.lastAccess = now
			rec, err := clone(e.rec)
			s.mu.Unlock()
			return rec, err
		}
		delete(s.cache, key)
	}
	gen := s.gen
	s.mu.Unlock()

	rec, err := s.coll.FindOne(ctx, key)
	if errors.Is(err, docstore.ErrNoDocument) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s get %v: %w", s.name, key, err)
	}

	cached, err := clone(rec)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.gen == gen {
		s.cache[key] = &entry[T]{rec: cached, lastAccess: now}
	}
	s.mu.Unlock()
	return rec, nil
}

// Save validates rec and upserts it. An invalid record returns a
// *model.ValidationError and leaves both the cache and the collection
// untouched.
func (s *Store[K, T]) Save(ctx context.Context, key K, rec *T) error {
	if err := s.validate(rec); err != nil {
		return err
	}
	if err := s.coll.Upsert(ctx, key, rec); err != nil {
		s.Evict(key)
		return fmt.Errorf("%s save %v: %w", s.name, key, err)
	}
	cached, err := clone(rec)
	if err != nil {
		s.Evict(key)
		return err
	}
	s.mu.Lock()
	s.gen++
	s.cache[key] = &entry[T]{rec: cached, lastAccess: s.now()}
	s.mu.Unlock()
	return nil
}

// Update merges fields into the stored record and drops the cache entry.
func (s *Store[K, T]) Update(ctx context.Context, key K, fields docstore.Fields) error {
	defer s.Evict(key)
	if err := s.coll.Set(ctx, key, fields); err != nil {
		return fmt.Errorf("%s update %v: %w", s.name, key, err)
	}
	return nil
}

// Deactivate marks the record inactive and evicts it from the cache.
func (s *Store[K, T]) Deactivate(ctx context.Context, key K) error {
	return s.Update(ctx, key, docstore.Fields{"is_active": false})
}

// Delete removes the record from the cache and the collection.
func (s *Store[K, T]) Delete(ctx context.Context, key K) error {
	defer s.Evict(key)
	if err := s.coll.Delete(ctx, key); err != nil {
		return fmt.Errorf("%s delete %v: %w", s.name, key, err)
	}
	return nil
}

// Evict drops the cache entry for key, if any.
func (s *Store[K, T]) Evict(key K) {
	s.mu.Lock()
	s.gen++
	delete(s.cache, key)
	s.mu.Unlock()
}

// evictWhere drops every cache entry whose record satisfies pred.
func (s *Store[K, T]) evictWhere(pred func(*T) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	n := 0
	for k, e := range s.cache {
		if pred(e.rec) {
			delete(s.cache, k)
			n++
		}
	}
	return n
}

// CleanExpiredCache drops entries not accessed within the TTL and returns
// how many were removed.
func (s *Store[K, T]) CleanExpiredCache() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, e := range s.cache {
		if now.Sub(e.lastAccess) >= s.ttl {
			delete(s.cache, k)
			n++
		}
	}
	if n > 0 {
		s.logger.Debug("cache entries expired", "removed", n, "remaining", len(s.cache))
	}
	return n
}

// CacheLen returns the number of cached records.
func (s *Store[K, T]) CacheLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache)
}

// Count returns the number of stored documents matching f.
func (s *Store[K, T]) Count(ctx context.Context, f docstore.Filter) (int64, error) {
	n, err := s.coll.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", s.name, err)
	}
	return n, nil
}

func (s *Store[K, T]) find(ctx context.Context, f docstore.Filter) ([]*T, error) {
	recs, err := s.coll.Find(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%s find: %w", s.name, err)
	}
	return recs, nil
}

func clone[T any](rec *T) (*T, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("copy record: %w", err)
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("copy record: %w", err)
	}
	return &out, nil
}
