// Package page is the small DOM-query surface the scraper is written
// against. Documents are fetched by a Browser and queried through Node.
package page

import (
	"context"
	"strings"
)

// Query selects descendant elements. Empty fields are ignored. Class may
// hold several space-separated classes, all of which must be present. Text
// keeps only elements whose text contains it.
type Query struct {
	Tag      string
	Class    string
	ID       string
	IDPrefix string
	Text     string
}

// Selector renders q as a CSS selector, without the Text filter.
func (q Query) Selector() string {
	var b strings.Builder
	b.WriteString(q.Tag)
	if q.ID != "" {
		b.WriteString("#" + q.ID)
	}
	for _, c := range strings.Fields(q.Class) {
		b.WriteString("." + c)
	}
	if q.IDPrefix != "" {
		b.WriteString(`[id^="` + q.IDPrefix + `"]`)
	}
	if b.Len() == 0 {
		return "*"
	}
	return b.String()
}

func (q Query) String() string {
	if q.Text == "" {
		return q.Selector()
	}
	return q.Selector() + `:contains("` + q.Text + `")`
}

// Node is one element of a fetched document.
type Node interface {
	// Find returns every descendant matching q, in document order.
	Find(q Query) []Node
	// First returns the first descendant matching q.
	First(q Query) (Node, bool)
	// Next returns the following sibling element.
	Next() (Node, bool)
	// Text returns the element's text with whitespace collapsed.
	Text() string
	// Attr returns the value of the named attribute.
	Attr(name string) (string, bool)
	// HTML returns the element's outer HTML, for diagnostics.
	HTML() string
}

// Document is a fetched page.
type Document struct {
	URL  string
	Root Node
}

// Browser fetches pages and submits forms.
type Browser interface {
	// Open fetches url.
	Open(ctx context.Context, url string) (*Document, error)
	// Submit sends form with its current field values overridden by values
	// and returns the resulting page. base is the document form belongs to.
	Submit(ctx context.Context, base *Document, form Node, values map[string]string) (*Document, error)
}
