package page

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	httpTimeout      = 15 * time.Second
)

// CollyBrowser fetches pages with a colly collector. Requests are made one
// at a time with a pause between them, and cookies persist across calls so
// a consent or search session carries over.
type CollyBrowser struct {
	collector *colly.Collector
}

// NewCollyBrowser returns a browser that waits delay between requests.
func NewCollyBrowser(delay time.Duration) (*CollyBrowser, error) {
	c := colly.NewCollector(
		colly.UserAgent(defaultUserAgent),
		colly.AllowURLRevisit(),
	)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       delay,
		RandomDelay: delay / 2,
	}); err != nil {
		return nil, fmt.Errorf("colly limit: %w", err)
	}
	c.SetRequestTimeout(httpTimeout)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c.SetCookieJar(jar)
	return &CollyBrowser{collector: c}, nil
}

func (b *CollyBrowser) Open(ctx context.Context, url string) (*Document, error) {
	return b.fetch(ctx, func(c *colly.Collector) error { return c.Visit(url) })
}

func (b *CollyBrowser) Submit(ctx context.Context, base *Document, form Node, values map[string]string) (*Document, error) {
	f, err := ReadForm(base, form, values)
	if err != nil {
		return nil, err
	}
	if f.Method == http.MethodPost {
		fields := make(map[string]string, len(f.Values))
		for k := range f.Values {
			fields[k] = f.Values.Get(k)
		}
		return b.fetch(ctx, func(c *colly.Collector) error { return c.Post(f.Action, fields) })
	}

	target := f.Action
	if len(f.Values) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + f.Values.Encode()
	}
	return b.fetch(ctx, func(c *colly.Collector) error { return c.Visit(target) })
}

func (b *CollyBrowser) fetch(ctx context.Context, visit func(*colly.Collector) error) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := b.collector.Clone()
	c.Context = ctx

	var (
		body     []byte
		finalURL string
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("request %s failed with status %d: %w", r.Request.URL, r.StatusCode, err)
	})

	if err := visit(c); err != nil {
		return nil, err
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if finalURL == "" {
		return nil, errors.New("no response received")
	}
	return Parse(finalURL, body)
}
