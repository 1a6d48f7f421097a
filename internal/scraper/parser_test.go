package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/model"
	"github.com/ddavlet/wg-gesucht-easyfinder/internal/page"
)

const base = "https://www.wg-gesucht.de/"

const rootHTML = `<html><body>
<form action="/suche" method="get">
  <select name="categories"><option value="0">WG</option></select>
  <input name="city_id" value="">
  <input type="submit" id="search_button" value="Suchen">
</form></body></html>`

func resultsHTML(next string, items ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, it := range items {
		b.WriteString(it)
	}
	if next != "" {
		fmt.Fprintf(&b, `<a class="page-link next" href="%s">&gt;</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func item(dataID, href string) string {
	attr := ""
	if dataID != "" {
		attr = fmt.Sprintf(` data-id="%s"`, dataID)
	}
	return fmt.Sprintf(`<div class="wgg_card offer_list_item"%s>
  <h3 class="truncate_title noprint"><a href="%s">Room</a></h3></div>`, attr, href)
}

func detailHTML(id, address, description string) string {
	return fmt.Sprintf(`<html><body>
<div class="col-xs-12 col-md-6">Anzeigen-ID: %s</div>
<div id="main_column">
 <div class="row">
  <h1> Bright room in Schwabing </h1>
  <img class="sp-image" data-default="https://img.example/1.jpg">
  <img class="sp-image" data-default="https://img.example/2.jpg">
  <div class="section_footer_dark"><b>18m²</b><b>690€</b></div>
 </div>
 <div class="row"><div class="row">
  <div class="row"><span class="section_panel_value">500€</span></div>
  <div class="row"><span class="section_panel_value">150€</span></div>
  <div class="row"><span class="section_panel_value">40€</span></div>
  <div class="row"><span class="section_panel_value">1500€</span></div>
  <div class="row"><span class="section_panel_value">n.a.</span></div>
  <div class="row"><span class="section_panel_value">ignored</span></div>
 </div></div>
 <div class="row"><div class="row">
  <div class="row"><span class="section_panel_detail">%s</span></div>
  <div class="row"><span class="section_panel_detail">frei ab:</span><span class="section_panel_value">01.06.2026</span></div>
  <div class="row"><span class="noprint section_panel_detail">Online:</span><b class="noprint">2 Stunden</b></div>
  <div class="row"><p>unexpected</p></div>
 </div></div>
 <div class="row"></div>
 <div class="row"><div class="row">
  <div class="text-center">Balkon</div><div class="text-center">Waschmaschine</div>
 </div></div>
 <div class="row"></div>
 <div class="row"><div class="row">
  <div id="freitext_0">%s</div><div id="freitext_1">Second paragraph</div>
 </div></div>
</div></body></html>`, id, address, description)
}

type fakeBrowser struct {
	pages     map[string]string
	opens     map[string]int
	submitted map[string]string
}

func newFakeBrowser(pages map[string]string) *fakeBrowser {
	return &fakeBrowser{pages: pages, opens: map[string]int{}}
}

func (b *fakeBrowser) Open(_ context.Context, url string) (*page.Document, error) {
	b.opens[url]++
	html, ok := b.pages[url]
	if !ok {
		return nil, fmt.Errorf("GET %s: 404", url)
	}
	return page.Parse(url, []byte(html))
}

func (b *fakeBrowser) Submit(ctx context.Context, doc *page.Document, form page.Node, values map[string]string) (*page.Document, error) {
	b.submitted = values
	f, err := page.ReadForm(doc, form, values)
	if err != nil {
		return nil, err
	}
	return b.Open(ctx, f.Action+"?"+f.Values.Encode())
}

type memorySink struct {
	offers    map[string]*model.Offer
	failOn    string
	existsErr error
}

func newSink() *memorySink { return &memorySink{offers: map[string]*model.Offer{}} }

func (s *memorySink) Exists(_ context.Context, id string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	o, ok := s.offers[id]
	return ok && o.IsActive, nil
}

func (s *memorySink) SaveOffer(_ context.Context, o *model.Offer) error {
	if o.DataID == s.failOn {
		return errors.New("connection reset")
	}
	if err := model.ValidateOffer(o); err != nil {
		return err
	}
	s.offers[o.DataID] = o
	return nil
}

func testConfig() Config {
	return Config{BaseURL: base, City: "München", CityID: 90, OfferType: model.OfferTypeMultiRoom, MaxPages: 2}
}

func TestParser_RunSavesNewOffersAndSkipsDuplicates(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("/page-2.html",
			item("100", "/wohnungen.100.html"),
			item("200", "/wohnungen.200.html"),
		),
		base + "page-2.html":        resultsHTML("/page-3.html", item("300", "/wohnungen.300.html")),
		base + "wohnungen.100.html": detailHTML("100", "Leopoldstraße 10 80802 München", "Nice"),
		base + "wohnungen.200.html": detailHTML("200", "Ungererstraße 5 80805 München", "Nice"),
		base + "wohnungen.300.html": detailHTML("300", "Belgradstraße 2 80796 München", "Nice"),
	}
	br := newFakeBrowser(pages)
	sink := newSink()
	sink.offers["200"] = &model.Offer{DataID: "200", IsActive: true}

	stats, err := New(br, sink, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := RunStats{Pages: 2, Seen: 3, Saved: 2, Duplicates: 1}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
	if br.opens[base+"wohnungen.200.html"] != 0 {
		t.Error("detail page of a stored offer was fetched")
	}
	if br.opens[base+"page-3.html"] != 0 {
		t.Error("run went past the page limit")
	}
	if br.submitted["categories"] != "2" || br.submitted["city_id"] != "90" {
		t.Errorf("search submitted with %v", br.submitted)
	}

	o := sink.offers["100"]
	if o == nil {
		t.Fatal("offer 100 not saved")
	}
	checks := []struct{ field, got, want string }{
		{"link", o.Link, base + "wohnungen.100.html"},
		{"name", o.Name, "Bright room in Schwabing"},
		{"area", o.Area, "18m²"},
		{"total_rent", o.TotalRent, "690€"},
		{"costs.rent", o.Costs.Rent, "500€"},
		{"costs.transfer_agreement", o.Costs.TransferAgreement, "n.a."},
		{"address", o.Address, "Leopoldstraße 10 80802 München"},
		{"availability", o.Availability["frei ab:"], "01.06.2026"},
		{"availability alt", o.Availability["Online:"], "2 Stunden"},
		{"city", o.City, "München"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if len(o.Images) != 2 || len(o.ObjectDetails) != 2 || len(o.Description) != 2 {
		t.Errorf("images=%v details=%v description=%v", o.Images, o.ObjectDetails, o.Description)
	}
	if o.OfferTypeID != 2 || !o.IsActive || o.CreatedAt.IsZero() {
		t.Errorf("classification = %d active=%v created=%v", o.OfferTypeID, o.IsActive, o.CreatedAt)
	}
}

func TestParser_SecondRunFetchesNoDetails(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("", item("100", "/wohnungen.100.html")),
		base + "wohnungen.100.html":            detailHTML("100", "Leopoldstraße 10 80802 München", "Nice"),
	}
	br := newFakeBrowser(pages)
	sink := newSink()
	p := New(br, sink, testConfig())

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if stats.Saved != 0 || stats.Duplicates != 1 {
		t.Errorf("second run stats = %+v, want one duplicate", stats)
	}
	if br.opens[base+"wohnungen.100.html"] != 1 {
		t.Errorf("detail fetched %d times, want 1", br.opens[base+"wohnungen.100.html"])
	}
	if len(sink.offers) != 1 {
		t.Errorf("stored offers = %d, want 1", len(sink.offers))
	}
}

func TestParser_SkipsBrokenListingsAndContinues(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("",
			item("1", "/missing.html"),
			item("2", "/broken.html"),
			item("3", "/noaddress.html"),
			item("5", "/ok.html"),
		),
		base + "broken.html":    `<html><body><div id="main_column"><div class="row"><h1>x</h1></div></div></body></html>`,
		base + "noaddress.html": detailHTML("3", "", "Nice"),
		base + "ok.html":        detailHTML("5", "Somewhere 2", "Nice"),
	}
	sink := newSink()

	stats, err := New(newFakeBrowser(pages), sink, testConfig()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Saved != 1 || stats.Skipped != 3 {
		t.Errorf("stats = %+v, want 1 saved and 3 skipped", stats)
	}
	if _, ok := sink.offers["5"]; !ok {
		t.Error("valid offer after the failures was not saved")
	}
}

func TestParser_StoreFailureEndsRun(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("/page-2.html",
			item("1", "/one.html"),
			item("2", "/two.html"),
		),
		base + "page-2.html": resultsHTML("", item("3", "/three.html")),
		base + "one.html":    detailHTML("1", "Somewhere 1", "Nice"),
		base + "two.html":    detailHTML("2", "Somewhere 2", "Nice"),
		base + "three.html":  detailHTML("3", "Somewhere 3", "Nice"),
	}

	tests := []struct {
		name  string
		setup func(*memorySink)
	}{
		{"save refused", func(s *memorySink) { s.failOn = "1" }},
		{"dedup lookup refused", func(s *memorySink) { s.existsErr = errors.New("connection refused") }},
	}
	for _, tc := range tests {
		br := newFakeBrowser(pages)
		sink := newSink()
		tc.setup(sink)

		stats, err := New(br, sink, testConfig()).Run(context.Background())
		if err == nil {
			t.Errorf("%s: Run returned nil error", tc.name)
		}
		want := RunStats{Pages: 1, Seen: 1, Failed: 1}
		if stats != want {
			t.Errorf("%s: stats = %+v, want %+v", tc.name, stats, want)
		}
		if br.opens[base+"two.html"] != 0 || br.opens[base+"page-2.html"] != 0 {
			t.Errorf("%s: run continued after the store failed", tc.name)
		}
	}
}

func TestParser_ExcludedTerms(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("", item("7", "/sublet.html")),
		base + "sublet.html":                   detailHTML("7", "Somewhere 1", "Nur Zwischenmiete bis August"),
	}
	cfg := testConfig()
	cfg.ExcludeTerms = []string{"zwischenmiete"}
	sink := newSink()
	stats, err := New(newFakeBrowser(pages), sink, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Skipped != 1 || len(sink.offers) != 0 {
		t.Errorf("stats = %+v stored=%d, want the sublet skipped", stats, len(sink.offers))
	}
}

func TestParser_IDFromDetailLabelWhenSummaryHasNone(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("", item("", "/a.html")),
		base + "a.html":                        detailHTML("555", "Somewhere 1", "Nice"),
	}
	sink := newSink()
	if _, err := New(newFakeBrowser(pages), sink, testConfig()).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := sink.offers["555"]; !ok {
		t.Errorf("offer not stored under the label id; have %v", sink.offers)
	}
}

func TestParser_RootUnreachableIsFatal(t *testing.T) {
	_, err := New(newFakeBrowser(map[string]string{}), newSink(), testConfig()).Run(context.Background())
	if err == nil {
		t.Fatal("Run with unreachable site returned nil error")
	}
}

func TestParser_MissingSearchFormIsMarkupError(t *testing.T) {
	pages := map[string]string{base: "<html><body><p>maintenance</p></body></html>"}
	_, err := New(newFakeBrowser(pages), newSink(), testConfig()).Run(context.Background())
	var me *MarkupError
	if !errors.As(err, &me) {
		t.Fatalf("Run: got %v, want *MarkupError", err)
	}
}

func TestParser_StopsWhenCancelled(t *testing.T) {
	pages := map[string]string{
		base: rootHTML,
		base + "suche?categories=2&city_id=90": resultsHTML("", item("1", "/ok.html")),
		base + "ok.html":                       detailHTML("1", "Somewhere", "Nice"),
	}
	ctx, cancel := context.WithCancel(context.Background())
	br := newFakeBrowser(pages)
	p := New(br, newSink(), testConfig())
	p.now = func() time.Time { cancel(); return time.Now() }

	// The first listing is processed; cancellation is noticed before the next.
	if _, err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run after cancel: got %v, want context.Canceled", err)
	}
}
