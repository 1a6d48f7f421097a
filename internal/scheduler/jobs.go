package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/matcher"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/scraper"
)

// Job names, also accepted by the ops API.
const (
	JobCleanExpiredCache       = "clean_expired_cache"
	JobDeactivateExpiredOffers = "deactivate_expired_offers"
	JobDeleteIncompleteFinders = "delete_incomplete_finders"
	JobDeleteExpiredFinders    = "delete_expired_finders"
	JobDeleteIncompleteOffers  = "delete_incomplete_offers"
	JobParseOffers             = "parse_offers"
	JobFindNewOffersForUsers   = "find_new_offers_for_users"
)

// CacheCleaner drops cache entries past their TTL.
type CacheCleaner interface {
	CleanExpiredCache() int
}

// OfferMaintainer is the offer store as seen by the maintenance jobs.
type OfferMaintainer interface {
	DeactivateExpired(ctx context.Context) (int64, error)
	DeleteIncomplete(ctx context.Context) (int64, error)
}

// FinderMaintainer is the finder store as seen by the maintenance jobs.
type FinderMaintainer interface {
	DeleteIncomplete(ctx context.Context) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// Parser runs one scrape session.
type Parser interface {
	Run(ctx context.Context) (scraper.RunStats, error)
}

// Matcher runs every user's finders.
type Matcher interface {
	FindNewOffersForUsers(ctx context.Context) (matcher.RunSummary, error)
}

// Deps are the components the standard jobs operate on.
type Deps struct {
	Caches  []CacheCleaner
	Offers  OfferMaintainer
	Finders FinderMaintainer
	Parser  Parser
	Matcher Matcher

	ParseEvery time.Duration
	MatchEvery time.Duration
}

// Jobs returns the standard job set: cache and store maintenance, the
// parser and the matching engine.
func Jobs(d Deps) []Job {
	return []Job{
		{Name: JobCleanExpiredCache, Every: 5 * time.Minute, Run: func(context.Context) error {
			n := 0
			for _, c := range d.Caches {
				n += c.CleanExpiredCache()
			}
			if n > 0 {
				log.Printf("[scheduler] Dropped %d expired cache entries", n)
			}
			return nil
		}},
		{Name: JobDeactivateExpiredOffers, Every: 6 * time.Hour, Run: counted("offers deactivated", d.Offers.DeactivateExpired)},
		{Name: JobDeleteIncompleteFinders, Every: 6 * time.Hour, Run: counted("incomplete finders deleted", d.Finders.DeleteIncomplete)},
		{Name: JobDeleteExpiredFinders, Every: 12 * time.Hour, Run: counted("expired finders deleted", d.Finders.DeleteExpired)},
		{Name: JobDeleteIncompleteOffers, Every: 12 * time.Hour, Run: counted("incomplete offers deleted", d.Offers.DeleteIncomplete)},
		{Name: JobParseOffers, Every: d.ParseEvery, Run: func(ctx context.Context) error {
			stats, err := d.Parser.Run(ctx)
			if err != nil {
				return err
			}
			log.Printf("[scheduler] Parse: %d page(s), %d seen, %d saved, %d duplicate(s), %d skipped",
				stats.Pages, stats.Seen, stats.Saved, stats.Duplicates, stats.Skipped)
			return nil
		}},
		{Name: JobFindNewOffersForUsers, Every: d.MatchEvery, Run: func(ctx context.Context) error {
			sum, err := d.Matcher.FindNewOffersForUsers(ctx)
			if err != nil {
				return err
			}
			log.Printf("[scheduler] Match: %d user(s), %d finder(s), %d match(es), %d delivered",
				sum.Users, sum.Finders, sum.Matched, sum.Delivered)
			return nil
		}},
	}
}

func counted(what string, fn func(context.Context) (int64, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := fn(ctx)
		if err != nil {
			return err
		}
		log.Printf("[scheduler] %d %s", n, what)
		return nil
	}
}
