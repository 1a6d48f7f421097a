package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/page"
)

// DefaultMaxPages bounds the number of result pages walked per run.
const DefaultMaxPages = 2

// OfferSink is where parsed offers go. *store.OfferStore satisfies it.
type OfferSink interface {
	// Exists reports whether an active offer with dataID is stored.
	Exists(ctx context.Context, dataID string) (bool, error)
	SaveOffer(ctx context.Context, o *model.Offer) error
}

// Config selects what a run searches for.
type Config struct {
	BaseURL      string
	City         string
	CityID       int
	OfferType    model.OfferType
	MaxPages     int
	ExcludeTerms []string
}

// Parser runs scrape sessions against the listing site.
type Parser struct {
	browser page.Browser
	offers  OfferSink
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// New constructs a Parser.
func New(browser page.Browser, offers OfferSink, cfg Config) *Parser {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Parser{
		browser: browser,
		offers:  offers,
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.With("component", "parser"),
	}
}

// Run executes one session: open the site, submit the search, then walk up
// to MaxPages result pages. Failures on a single listing are logged and
// counted. Failures that prevent searching, an unusable offer store and
// cancellation end the run and are returned.
func (p *Parser) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	s := &session{state: StateInit}

	doc, err := p.search(ctx, s)
	if err != nil {
		_ = s.advance(StateFailed)
		p.logger.Error("scrape session failed", "state", s.state, "err", err, "html", fragmentOf(err))
		return stats, err
	}

	for {
		if err := s.advance(StatePage); err != nil {
			return stats, err
		}
		stats.Pages++
		p.logger.Info("parsing result page", "page", stats.Pages, "url", doc.URL)

		for _, sum := range listingSummaries(doc.Root) {
			if err := ctx.Err(); err != nil {
				_ = s.advance(StateFailed)
				return stats, err
			}
			out := p.processListing(ctx, doc, sum)
			stats.add(out)
			if out.Kind == OutcomeFatal {
				_ = s.advance(StateFailed)
				p.logger.Error("scrape session aborted",
					"data_id", out.DataID, "reason", out.Reason, "err", out.Err,
					"pages", stats.Pages, "saved", stats.Saved)
				return stats, fmt.Errorf("%s: %w", out.Reason, out.Err)
			}
			if out.Kind == OutcomeSkipped {
				p.logger.Warn("offer skipped, continuing",
					"data_id", out.DataID, "reason", out.Reason, "err", out.Err, "html", fragmentOf(out.Err))
			}
		}

		if stats.Pages >= p.cfg.MaxPages {
			break
		}
		next, ok := p.nextPage(ctx, doc)
		if !ok {
			break
		}
		doc = next
	}

	_ = s.advance(StateDone)
	p.logger.Info("scrape session done",
		"pages", stats.Pages, "seen", stats.Seen, "saved", stats.Saved,
		"duplicates", stats.Duplicates, "skipped", stats.Skipped)
	return stats, nil
}

// search opens the site root, accepts the consent form when one is shown
// and submits the search form for the configured housing type and city.
func (p *Parser) search(ctx context.Context, s *session) (*page.Document, error) {
	root, err := p.browser.Open(ctx, p.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", p.cfg.BaseURL, err)
	}
	if consent, ok := root.Root.First(page.Query{Tag: "form", IDPrefix: "consent"}); ok {
		if _, err := p.browser.Submit(ctx, root, consent, nil); err != nil {
			p.logger.Warn("consent form not accepted, continuing", "err", err)
		} else if root, err = p.browser.Open(ctx, p.cfg.BaseURL); err != nil {
			return nil, fmt.Errorf("reopen %s: %w", p.cfg.BaseURL, err)
		}
	}

	if err := s.advance(StateSearching); err != nil {
		return nil, err
	}
	form, ok := searchForm(root.Root)
	if !ok {
		return nil, markupError("search", "search form not found", "")
	}
	results, err := p.browser.Submit(ctx, root, form, map[string]string{
		"categories": strconv.Itoa(p.cfg.OfferType.ID()),
		"city_id":    strconv.Itoa(p.cfg.CityID),
	})
	if err != nil {
		return nil, fmt.Errorf("submit search: %w", err)
	}
	return results, nil
}

func searchForm(root page.Node) (page.Node, bool) {
	for _, f := range root.Find(page.Query{Tag: "form"}) {
		if _, ok := f.First(qSearchButton); ok {
			return f, true
		}
	}
	return nil, false
}

func (p *Parser) nextPage(ctx context.Context, doc *page.Document) (*page.Document, bool) {
	a, ok := doc.Root.First(qNextPage)
	if !ok {
		return nil, false
	}
	href, ok := a.Attr("href")
	if !ok || href == "" {
		return nil, false
	}
	target, err := doc.Resolve(href)
	if err != nil {
		p.logger.Warn("bad next page link", "href", href, "err", err)
		return nil, false
	}
	next, err := p.browser.Open(ctx, target)
	if err != nil {
		p.logger.Warn("next page unavailable, ending run", "url", target, "err", err)
		return nil, false
	}
	return next, true
}

// processListing handles one search result: dedup, detail fetch,
// extraction and storage.
func (p *Parser) processListing(ctx context.Context, results *page.Document, sum summary) Outcome {
	if sum.DataID != "" {
		if out, done := p.checkDuplicate(ctx, sum.DataID); done {
			return out
		}
	}

	link, err := results.Resolve(sum.Href)
	if err != nil {
		return skipped(sum.DataID, "bad listing link", err)
	}
	detail, err := p.browser.Open(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return fatal(sum.DataID, "cancelled", ctx.Err())
		}
		return skipped(sum.DataID, "detail page unavailable", err)
	}

	id := sum.DataID
	if labelID, err := detailDataID(detail.Root); err == nil {
		if id == "" {
			id = labelID
			if out, done := p.checkDuplicate(ctx, id); done {
				return out
			}
		}
	} else if id == "" {
		return skipped("", "no listing id", err)
	}

	o := model.NewOffer(id)
	o.Link = detail.URL
	o.SetOfferType(p.cfg.OfferType)
	o.City = p.cfg.City
	o.CityID = p.cfg.CityID
	o.CreatedAt = p.now().UTC()

	if err := extractDetail(detail.Root, o, p.logger); err != nil {
		return skipped(id, "unexpected markup", err)
	}
	if term := excludedTerm(o, p.cfg.ExcludeTerms); term != "" {
		return skipped(id, "excluded term "+strconv.Quote(term), nil)
	}

	if err := p.offers.SaveOffer(ctx, o); err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return skipped(id, "invalid offer", err)
		}
		return fatal(id, "store unavailable", err)
	}
	p.logger.Info("new offer saved", "data_id", id)
	return saved(id)
}

// checkDuplicate reports done=true with a duplicate outcome when dataID is
// already stored, or a fatal one when the store cannot be asked.
func (p *Parser) checkDuplicate(ctx context.Context, dataID string) (Outcome, bool) {
	exists, err := p.offers.Exists(ctx, dataID)
	if err != nil {
		return fatal(dataID, "dedup lookup failed", err), true
	}
	if exists {
		return duplicate(dataID), true
	}
	return Outcome{}, false
}
