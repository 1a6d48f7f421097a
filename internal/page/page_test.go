package page_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ddavlet/wg-gesucht-easyfinder/internal/page"
)

const listing = `<html><body>
<div id="main_column">
  <div class="row"><h1>  Sunny   room </h1><div class="section_footer_dark"><b>18m²</b><b>650€</b></div></div>
  <div class="row"><span class="section_panel_value">500€</span></div>
  <div id="freitext_0">first</div><div id="freitext_1">second</div>
</div>
<form id="search" action="/search" method="get">
  <input name="city_id" value="8">
  <input type="checkbox" name="rm" value="1">
  <select name="categories"><option value="0">WG</option><option value="2" selected>flat</option></select>
  <input type="submit" id="search_button" name="go" value="Go">
</form>
</body></html>`

func mustParse(t *testing.T, html string) *page.Document {
	t.Helper()
	doc, err := page.Parse("https://www.wg-gesucht.de/", []byte(html))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestQuery_Selector(t *testing.T) {
	tests := []struct {
		q    page.Query
		want string
	}{
		{page.Query{Tag: "div", ID: "main_column"}, "div#main_column"},
		{page.Query{Class: "truncate_title noprint"}, ".truncate_title.noprint"},
		{page.Query{Tag: "div", IDPrefix: "freitext_"}, `div[id^="freitext_"]`},
		{page.Query{Tag: "a", Class: "page-link next"}, "a.page-link.next"},
		{page.Query{}, "*"},
	}
	for _, tc := range tests {
		if got := tc.q.Selector(); got != tc.want {
			t.Errorf("Selector(%+v) = %q, want %q", tc.q, got, tc.want)
		}
	}
}

func TestNode_Queries(t *testing.T) {
	doc := mustParse(t, listing)

	main, ok := doc.Root.First(page.Query{Tag: "div", ID: "main_column"})
	if !ok {
		t.Fatal("main column not found")
	}
	row, ok := main.First(page.Query{Tag: "div", Class: "row"})
	if !ok {
		t.Fatal("first row not found")
	}
	h1, _ := row.First(page.Query{Tag: "h1"})
	if h1.Text() != "Sunny room" {
		t.Errorf("h1 text = %q, want collapsed whitespace", h1.Text())
	}
	area, ok := row.First(page.Query{Tag: "b", Text: "m²"})
	if !ok || area.Text() != "18m²" {
		t.Errorf("area = %v, want 18m²", area)
	}

	next, ok := row.Next()
	if !ok {
		t.Fatal("second row not found")
	}
	if v, _ := next.First(page.Query{Class: "section_panel_value"}); v.Text() != "500€" {
		t.Errorf("second row value = %q", v.Text())
	}

	if got := len(main.Find(page.Query{Tag: "div", IDPrefix: "freitext_"})); got != 2 {
		t.Errorf("description blocks = %d, want 2", got)
	}
	if _, ok := main.First(page.Query{Tag: "table"}); ok {
		t.Error("First found a missing element")
	}
}

func TestReadForm(t *testing.T) {
	doc := mustParse(t, listing)
	form, ok := doc.Root.First(page.Query{Tag: "form"})
	if !ok {
		t.Fatal("form not found")
	}
	f, err := page.ReadForm(doc, form, map[string]string{"city_id": "90"})
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	if f.Method != "GET" || f.Action != "https://www.wg-gesucht.de/search" {
		t.Errorf("form = %s %s", f.Method, f.Action)
	}
	if f.Values.Get("city_id") != "90" || f.Values.Get("categories") != "2" {
		t.Errorf("values = %v", f.Values)
	}
	if f.Values.Has("rm") || f.Values.Has("go") {
		t.Errorf("unchecked box or submit button sent: %v", f.Values)
	}
}

func TestCollyBrowser_OpenAndSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, listing)
		case "/search":
			fmt.Fprintf(w, "<html><body><p id=q>%s/%s</p></body></html>", r.URL.Query().Get("categories"), r.URL.Query().Get("city_id"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	b, err := page.NewCollyBrowser(0)
	if err != nil {
		t.Fatalf("NewCollyBrowser: %v", err)
	}
	ctx := context.Background()
	doc, err := b.Open(ctx, srv.URL+"/")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	form, _ := doc.Root.First(page.Query{Tag: "form"})
	res, err := b.Submit(ctx, doc, form, map[string]string{"categories": "1", "city_id": "90"})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p, _ := res.Root.First(page.Query{Tag: "p", ID: "q"})
	if p.Text() != "1/90" {
		t.Errorf("submitted values = %q, want 1/90", p.Text())
	}

	if _, err := b.Open(ctx, srv.URL+"/missing"); err == nil {
		t.Error("Open of a 404 page returned no error")
	}
}

func TestCollyBrowser_OpenHonoursCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	b, err := page.NewCollyBrowser(0)
	if err != nil {
		t.Fatalf("NewCollyBrowser: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := b.Open(ctx, srv.URL+"/slow"); err == nil {
		t.Fatal("Open of a stalled page returned no error")
	}
	if took := time.Since(start); took > 5*time.Second {
		t.Errorf("Open returned after %v, want it to stop at the deadline", took)
	}
}
