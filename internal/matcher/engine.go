// Package matcher evaluates stored offers against users' saved searches.
// Every offer is looked up at most once per finder: evaluated ids are kept
// in the finder's parsed_offers, matches in its offers.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/notify"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/store"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/travel"
)

const (
	// DefaultLookupTimeout bounds one travel-time request.
	DefaultLookupTimeout = 10 * time.Second
	// DefaultMaxLookupFailures is how many passes may fail to price an
	// offer before it is recorded as parsed without a match.
	DefaultMaxLookupFailures = 5
)

// OfferSource lists the offers eligible for matching.
type OfferSource interface {
	ActiveOffers(ctx context.Context) ([]*model.Offer, error)
}

// FinderStore loads and persists finders.
type FinderStore interface {
	Get(ctx context.Context, finderID string) (*model.Finder, error)
	Save(ctx context.Context, f *model.Finder) error
	ByUser(ctx context.Context, userID int64) ([]*model.Finder, error)
}

// UserSource lists the users whose finders are run.
type UserSource interface {
	ActiveUsers(ctx context.Context) ([]*model.User, error)
}

// Options tunes an Engine. Zero values use the defaults.
type Options struct {
	LookupTimeout     time.Duration
	MaxLookupFailures int
}

// Engine runs finders against the active offers.
type Engine struct {
	offers   OfferSource
	finders  FinderStore
	users    UserSource
	router   travel.Router
	notifier notify.Notifier

	locks         store.KeyedMutex
	lookupTimeout time.Duration
	maxFailures   int
	logger        *slog.Logger
}

// NewEngine constructs an Engine. notifier may be nil, in which case
// matches are stored but not delivered.
func NewEngine(offers OfferSource, finders FinderStore, users UserSource, router travel.Router, notifier notify.Notifier, opts Options) *Engine {
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = DefaultLookupTimeout
	}
	if opts.MaxLookupFailures <= 0 {
		opts.MaxLookupFailures = DefaultMaxLookupFailures
	}
	return &Engine{
		offers:        offers,
		finders:       finders,
		users:         users,
		router:        router,
		notifier:      notifier,
		lookupTimeout: opts.LookupTimeout,
		maxFailures:   opts.MaxLookupFailures,
		logger:        slog.With("component", "matcher"),
	}
}

// FindOffers evaluates every active offer not yet parsed by finder, using
// origin as the travel origin, and returns the ids matched by this call.
// finder is updated to the persisted state.
func (e *Engine) FindOffers(ctx context.Context, finder *model.Finder, origin string) ([]string, error) {
	matched, err := e.findOffers(ctx, finder, origin)
	ids := make([]string, 0, len(matched))
	for _, o := range matched {
		ids = append(ids, o.DataID)
	}
	return ids, err
}

func (e *Engine) findOffers(ctx context.Context, finder *model.Finder, origin string) ([]*model.Offer, error) {
	unlock := e.locks.Lock(finder.FinderID)
	defer unlock()

	// Reload under the lock so concurrent runs never overwrite each other.
	f, err := e.finders.Get(ctx, finder.FinderID)
	if err != nil {
		return nil, fmt.Errorf("load finder %s: %w", finder.FinderID, err)
	}
	defer func() { *finder = *f }()

	if !f.IsComplete() {
		return nil, nil
	}
	if !f.OfferType.Valid() {
		e.logger.Warn("finder has no housing type, skipping", "finder_id", f.FinderID)
		return nil, nil
	}

	offers, err := e.offers.ActiveOffers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load active offers: %w", err)
	}

	var matched []*model.Offer
	for _, o := range offers {
		if err := ctx.Err(); err != nil {
			return matched, e.finish(ctx, f, err)
		}
		if f.HasParsed(o.DataID) {
			continue
		}

		// Routes run from the listing to the user's address.
		d, ok := e.travelTime(ctx, o.Address, origin, f.Type)
		if !ok {
			if n := f.RecordLookupFailure(o.DataID); n < e.maxFailures {
				e.logger.Info("no travel time, will retry", "finder_id", f.FinderID, "data_id", o.DataID, "failures", n)
			} else {
				e.logger.Warn("no travel time, giving up on offer", "finder_id", f.FinderID, "data_id", o.DataID, "failures", n)
				f.MarkParsed(o.DataID)
			}
			if err := e.persist(ctx, f); err != nil {
				return matched, err
			}
			continue
		}

		f.MarkParsed(o.DataID)
		if err := e.persist(ctx, f); err != nil {
			return matched, err
		}
		if d < f.MaxTravelTime() && o.OfferTypeID == f.OfferTypeID {
			f.MarkMatched(o.DataID)
			if err := e.persist(ctx, f); err != nil {
				return matched, err
			}
			matched = append(matched, o)
			e.logger.Info("offer matched", "finder_id", f.FinderID, "data_id", o.DataID, "travel_time", d)
		}
	}
	return matched, e.finish(ctx, f, nil)
}

// persist writes f. Cancellation of ctx does not stop the write: a lookup
// that was already paid for is always recorded.
func (e *Engine) persist(ctx context.Context, f *model.Finder) error {
	if err := e.finders.Save(context.WithoutCancel(ctx), f); err != nil {
		return fmt.Errorf("save finder %s: %w", f.FinderID, err)
	}
	return nil
}

// finish writes the finder a last time and returns cause, or the write
// error when there is no cause.
func (e *Engine) finish(ctx context.Context, f *model.Finder, cause error) error {
	if err := e.persist(ctx, f); err != nil && cause == nil {
		return err
	}
	return cause
}

func (e *Engine) travelTime(ctx context.Context, origin, destination string, mode model.TravelMode) (time.Duration, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()
	return e.router.TravelTime(ctx, origin, destination, mode)
}

// RunSummary reports one FindNewOffersForUsers pass.
type RunSummary struct {
	Users     int
	Finders   int
	Matched   int
	Delivered int
}

// FindNewOffersForUsers runs every complete, active finder of every active
// user with an address, then hands newly matched offers to the notifier for
// users who enabled notifications. A failing finder or delivery is logged
// and the pass continues.
func (e *Engine) FindNewOffersForUsers(ctx context.Context) (RunSummary, error) {
	var sum RunSummary

	users, err := e.users.ActiveUsers(ctx)
	if err != nil {
		return sum, fmt.Errorf("load active users: %w", err)
	}

	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if u.Preferences.Address == "" {
			continue
		}
		sum.Users++

		finders, err := e.finders.ByUser(ctx, u.ChatID)
		if err != nil {
			e.logger.Warn("failed to load finders, continuing", "chat_id", u.ChatID, "err", err)
			continue
		}
		for _, f := range finders {
			if !f.IsActive || !f.IsComplete() {
				continue
			}
			sum.Finders++

			matched, err := e.findOffers(ctx, f, u.Origin())
			sum.Matched += len(matched)
			sum.Delivered += e.deliver(ctx, u, matched)
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, err
			}
			if err != nil {
				e.logger.Warn("finder run failed, continuing", "finder_id", f.FinderID, "err", err)
			}
		}
	}

	e.logger.Info("matching pass done",
		"users", sum.Users, "finders", sum.Finders, "matched", sum.Matched, "delivered", sum.Delivered)
	return sum, nil
}

func (e *Engine) deliver(ctx context.Context, u *model.User, offers []*model.Offer) int {
	if e.notifier == nil || !u.Preferences.Notifications {
		return 0
	}
	n := 0
	for _, o := range offers {
		if err := e.notifier.OfferMatched(ctx, u, o); err != nil {
			e.logger.Warn("delivery failed, continuing", "chat_id", u.ChatID, "data_id", o.DataID, "err", err)
			continue
		}
		n++
	}
	return n
}
