package page

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

type node struct {
	sel *goquery.Selection
}

// Parse builds a Document from raw HTML.
func Parse(pageURL string, html []byte) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return &Document{URL: pageURL, Root: &node{sel: doc.Selection}}, nil
}

func wrap(sel *goquery.Selection, text string) []Node {
	var out []Node
	sel.Each(func(_ int, s *goquery.Selection) {
		if text != "" && !strings.Contains(s.Text(), text) {
			return
		}
		out = append(out, &node{sel: s})
	})
	return out
}

func (n *node) Find(q Query) []Node {
	return wrap(n.sel.Find(q.Selector()), q.Text)
}

func (n *node) First(q Query) (Node, bool) {
	found := n.Find(q)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

func (n *node) Next() (Node, bool) {
	next := n.sel.Next()
	if next.Length() == 0 {
		return nil, false
	}
	return &node{sel: next}, true
}

func (n *node) Text() string {
	return strings.Join(strings.Fields(n.sel.Text()), " ")
}

func (n *node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func (n *node) HTML() string {
	html, err := goquery.OuterHtml(n.sel)
	if err != nil {
		return ""
	}
	return html
}

// Form describes a form ready to be sent.
type Form struct {
	Method string
	Action string
	Values url.Values
}

// ReadForm collects form's method, absolute action URL and current field
// values, then applies overrides. Only nodes produced by this package are
// supported.
func ReadForm(base *Document, form Node, overrides map[string]string) (Form, error) {
	n, ok := form.(*node)
	if !ok {
		return Form{}, fmt.Errorf("unsupported form node %T", form)
	}

	method := strings.ToUpper(strings.TrimSpace(n.sel.AttrOr("method", "GET")))
	action, err := resolve(base.URL, n.sel.AttrOr("action", ""))
	if err != nil {
		return Form{}, err
	}

	values := url.Values{}
	n.sel.Find("input[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		switch strings.ToLower(s.AttrOr("type", "text")) {
		case "checkbox", "radio":
			if _, checked := s.Attr("checked"); !checked {
				return
			}
		case "submit", "button", "image", "file":
			return
		}
		values.Add(name, s.AttrOr("value", ""))
	})
	n.sel.Find("select[name]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if opt.Length() > 0 {
			values.Set(name, opt.AttrOr("value", strings.TrimSpace(opt.Text())))
		}
	})
	for k, v := range overrides {
		values.Set(k, v)
	}
	return Form{Method: method, Action: action, Values: values}, nil
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url %q: %w", base, err)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", ref, err)
	}
	return b.ResolveReference(r).String(), nil
}

// Resolve makes ref absolute against the document URL.
func (d *Document) Resolve(ref string) (string, error) {
	return resolve(d.URL, ref)
}
