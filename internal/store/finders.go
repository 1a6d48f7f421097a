package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// DefaultFinderLife is how long a finder survives without being saved.
const DefaultFinderLife = 30 * 24 * time.Hour

// FinderStore is the cache-backed store of saved searches, keyed by
// finder_id. Every save stamps last_access_at, which drives expiry.
type FinderStore struct {
	*Store[string, model.Finder]
	life time.Duration
}

// NewFinderStore wraps coll. A non-positive life uses DefaultFinderLife.
func NewFinderStore(coll docstore.Collection[string, model.Finder], life time.Duration, opts ...Option) *FinderStore {
	if life <= 0 {
		life = DefaultFinderLife
	}
	return &FinderStore{
		Store: newStore("finders", coll, model.ValidateFinder,
			func(f *model.Finder) bool { return f.IsActive }, buildOptions(opts)),
		life: life,
	}
}

// Save stamps last_access_at and stores f under its finder_id.
func (s *FinderStore) Save(ctx context.Context, f *model.Finder) error {
	if f == nil {
		return model.ValidateFinder(nil)
	}
	f.LastAccessAt = s.now()
	return s.Store.Save(ctx, f.FinderID, f)
}

// NewFinder creates and stores an incomplete finder with a random id.
func (s *FinderStore) NewFinder(ctx context.Context, userID int64, mode model.TravelMode) (*model.Finder, error) {
	now := s.now()
	f := &model.Finder{
		FinderID:       uuid.NewString(),
		UserID:         userID,
		Type:           mode,
		OfferTypeID:    -1,
		Duration:       model.IncompleteDuration,
		Offers:         []string{},
		ParsedOffers:   []string{},
		LookupFailures: map[string]int{},
		IsActive:       true,
		CreatedAt:      now,
	}
	if err := s.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// ByUser returns every finder owned by userID, active or not.
func (s *FinderStore) ByUser(ctx context.Context, userID int64) ([]*model.Finder, error) {
	return s.find(ctx, docstore.Where(docstore.Eq("user_id", userID)))
}

// DeleteByUser removes every finder owned by userID.
func (s *FinderStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	defer s.evictWhere(func(f *model.Finder) bool { return f.UserID == userID })
	n, err := s.coll.DeleteMany(ctx, docstore.Where(docstore.Eq("user_id", userID)))
	if err != nil {
		return 0, fmt.Errorf("finders delete by user %d: %w", userID, err)
	}
	return n, nil
}

// DeleteIncomplete removes finders whose duration was never set.
func (s *FinderStore) DeleteIncomplete(ctx context.Context) (int64, error) {
	defer s.evictWhere(func(f *model.Finder) bool { return !f.IsComplete() })
	n, err := s.coll.DeleteMany(ctx, docstore.Where(docstore.Eq("duration", model.IncompleteDuration)))
	if err != nil {
		return 0, fmt.Errorf("finders delete incomplete: %w", err)
	}
	if n > 0 {
		s.logger.Info("deleted incomplete finders", "count", n)
	}
	return n, nil
}

// DeleteExpired removes finders not saved within the finder life.
func (s *FinderStore) DeleteExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.life)
	defer s.evictWhere(func(f *model.Finder) bool { return f.LastAccessAt.Before(cutoff) })
	n, err := s.coll.DeleteMany(ctx, docstore.Where(docstore.Lt("last_access_at", cutoff)))
	if err != nil {
		return 0, fmt.Errorf("finders delete expired: %w", err)
	}
	if n > 0 {
		s.logger.Info("deleted expired finders", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// AddMatch records dataID as matched by the finder. Inactive finders are
// updated too.
func (s *FinderStore) AddMatch(ctx context.Context, finderID, dataID string) error {
	f, err := s.GetAny(ctx, finderID)
	if err != nil {
		return err
	}
	f.MarkMatched(dataID)
	return s.Save(ctx, f)
}

// RemoveMatch drops dataID from the finder's matches. It stays parsed, so
// the engine will not match it again.
func (s *FinderStore) RemoveMatch(ctx context.Context, finderID, dataID string) error {
	f, err := s.GetAny(ctx, finderID)
	if err != nil {
		return err
	}
	kept := f.Offers[:0]
	for _, id := range f.Offers {
		if id != dataID {
			kept = append(kept, id)
		}
	}
	f.Offers = kept
	return s.Save(ctx, f)
}

// MatchedOffers returns the active offers matched by any of the user's
// finders, without duplicates.
func (s *FinderStore) MatchedOffers(ctx context.Context, userID int64, offers *OfferStore) ([]*model.Offer, error) {
	finders, err := s.ByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []*model.Offer
	for _, f := range finders {
		for _, id := range f.Offers {
			if seen[id] {
				continue
			}
			seen[id] = true
			o, err := offers.Get(ctx, id)
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
	}
	return out, nil
}
