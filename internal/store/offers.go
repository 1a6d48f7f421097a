package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/docstore"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
)

// DefaultOfferLife is the age after which an offer is deactivated.
const DefaultOfferLife = 10 * 24 * time.Hour

// OfferStore is the cache-backed store of scraped offers, keyed by data_id.
type OfferStore struct {
	*Store[string, model.Offer]
	life time.Duration
}

// NewOfferStore wraps coll. A non-positive life uses DefaultOfferLife.
func NewOfferStore(coll docstore.Collection[string, model.Offer], life time.Duration, opts ...Option) *OfferStore {
	if life <= 0 {
		life = DefaultOfferLife
	}
	return &OfferStore{
		Store: newStore("offers", coll, model.ValidateOffer,
			func(o *model.Offer) bool { return o.IsActive }, buildOptions(opts)),
		life: life,
	}
}

// SaveOffer stores o under its data_id.
func (s *OfferStore) SaveOffer(ctx context.Context, o *model.Offer) error {
	if o == nil {
		return model.ValidateOffer(nil)
	}
	return s.Save(ctx, o.DataID, o)
}

// ActiveOffers reads every active offer straight from the collection.
func (s *OfferStore) ActiveOffers(ctx context.Context) ([]*model.Offer, error) {
	return s.find(ctx, docstore.Where(docstore.Eq("is_active", true)))
}

// CountActive returns the number of active offers.
func (s *OfferStore) CountActive(ctx context.Context) (int64, error) {
	return s.Count(ctx, docstore.Where(docstore.Eq("is_active", true)))
}

// DeactivateExpired marks every active offer created before now minus the
// offer life as inactive. Affected cache entries are dropped.
func (s *OfferStore) DeactivateExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.life)
	defer s.evictWhere(func(o *model.Offer) bool { return o.CreatedAt.Before(cutoff) })
	n, err := s.coll.UpdateMany(ctx,
		docstore.Where(docstore.Eq("is_active", true), docstore.Lt("created_at", cutoff)),
		docstore.Fields{"is_active": false},
	)
	if err != nil {
		return 0, fmt.Errorf("offers deactivate expired: %w", err)
	}
	if n > 0 {
		s.logger.Info("deactivated expired offers", "count", n, "cutoff", cutoff)
	}
	return n, nil
}

// DeleteIncomplete removes offers that lack a housing type or city. Records
// stored before classification was introduced are the usual case.
func (s *OfferStore) DeleteIncomplete(ctx context.Context) (int64, error) {
	all, err := s.find(ctx, nil)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, o := range all {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if model.ValidateOfferClassification(o) == nil {
			continue
		}
		if o.DataID == "" {
			s.logger.Warn("incomplete offer has no data_id, cannot delete")
			continue
		}
		if err := s.Delete(ctx, o.DataID); err != nil {
			s.logger.Warn("failed to delete incomplete offer", "data_id", o.DataID, "err", err)
			continue
		}
		n++
	}
	if n > 0 {
		s.logger.Info("deleted incomplete offers", "count", n)
	}
	return n, nil
}

// Exists reports whether an active offer with dataID is stored.
func (s *OfferStore) Exists(ctx context.Context, dataID string) (bool, error) {
	_, err := s.Get(ctx, dataID)
	if errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
